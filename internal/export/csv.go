package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

const (
	bom         = "\uFEFF"
	colName     = "이름"
	colID       = "학번"
	colTotal    = "총점"
	colRatio    = "비율(%)"
	colAllTotal = "전체 총점"
	colAllRatio = "전체 비율(%)"
)

// AssessmentCSV writes the single-assessment export: one column per problem,
// then total and ratio. Rows are written in the order given.
func AssessmentCSV(w io.Writer, item gradebook.AssessmentItem, rows []gradebook.StudentGradeRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: nothing to export", gradebook.ErrNoData)
	}
	cw := newWriter(w)

	header := []string{quote(colName), quote(colID)}
	for _, p := range item.Problems {
		header = append(header, quote(problemHeader(p)))
	}
	header = append(header, quote(colTotal), quote(colRatio))
	cw.line(header)

	for _, r := range rows {
		fields := []string{quote(r.StudentName), quote(r.StudentID)}
		for _, p := range item.Problems {
			g, _ := r.Grade(p.ProblemID)
			fields = append(fields, scoreField(g.Score))
		}
		fields = append(fields, number(r.TotalScore), gradebook.Ratio(r.TotalScore, r.TotalPoints))
		cw.line(fields)
	}
	return cw.flush()
}

// CourseCSV writes the whole-course export for the given students, in order.
// Every item contributes its problem columns and a total column; the overall
// total and ratio close the row.
func CourseCSV(w io.Writer, items []gradebook.AssessmentItem, students []gradebook.CourseStudentEntry) error {
	if len(items) == 0 || len(students) == 0 {
		return fmt.Errorf("%w: nothing to export", gradebook.ErrNoData)
	}
	cw := newWriter(w)

	header := []string{quote(colName), quote(colID)}
	for _, it := range items {
		for _, p := range it.Problems {
			header = append(header, quote(it.Title+" - "+problemHeader(p)))
		}
		header = append(header, quote(it.Title+" "+colTotal))
	}
	header = append(header, quote(colAllTotal), quote(colAllRatio))
	cw.line(header)

	for _, e := range students {
		fields := []string{quote(e.StudentName), quote(e.StudentID)}
		for _, it := range items {
			st, ok := e.SubTotalFor(it.Type, it.ID)
			for _, p := range it.Problems {
				if !ok {
					fields = append(fields, "")
					continue
				}
				fields = append(fields, scoreField(st.Problems[p.ProblemID].Score))
			}
			if ok {
				fields = append(fields, number(st.TotalScore))
			} else {
				fields = append(fields, "")
			}
		}
		score, _, ratio := e.Overall(items)
		fields = append(fields, number(score), ratio)
		cw.line(fields)
	}
	return cw.flush()
}

// FileName builds "<context>_<YYYY-MM-DD>.csv".
func FileName(context string, now time.Time) string {
	context = strings.TrimSpace(context)
	context = strings.NewReplacer("/", "_", "\\", "_", "\"", "", "\n", " ", "\r", " ").Replace(context)
	if context == "" {
		context = "gradebook"
	}
	return context + "_" + now.Format("2006-01-02") + ".csv"
}

func problemHeader(p gradebook.ProblemSpec) string {
	return fmt.Sprintf("%s (%s점)", p.Title, number(p.Points))
}

func scoreField(s *float64) string {
	if s == nil {
		return ""
	}
	return number(*s)
}

// number prints at most two decimals so summed totals drop float noise.
func number(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// writer emits pre-quoted fields; encoding/csv only quotes when it must,
// and this format quotes every text field.
type writer struct {
	bw  *bufio.Writer
	err error
}

func newWriter(w io.Writer) *writer {
	cw := &writer{bw: bufio.NewWriter(w)}
	_, cw.err = cw.bw.WriteString(bom)
	return cw
}

func (w *writer) line(fields []string) {
	if w.err != nil {
		return
	}
	if _, err := w.bw.WriteString(strings.Join(fields, ",")); err != nil {
		w.err = err
		return
	}
	w.err = w.bw.WriteByte('\n')
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.bw.Flush()
}
