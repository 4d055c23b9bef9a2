package gradebook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Unwrap accepts either a bare JSON array or an object carrying the array in
// "data", and returns the array elements. Anything else yields nil.
func Unwrap(payload []byte) []json.RawMessage {
	body := bytes.TrimSpace(payload)
	if len(body) == 0 {
		return nil
	}
	if body[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil
		}
		body = bytes.TrimSpace(wrapped.Data)
	}
	if len(body) == 0 || body[0] != '[' {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil
	}
	return elems
}

// NormalizeRows turns a raw grades payload into rows. It never fails:
// unreadable payloads give an empty slice and unreadable elements are skipped.
func NormalizeRows(payload []byte) []StudentGradeRow {
	rows, _, _ := decodeRows(payload)
	return rows
}

// decodeRows is NormalizeRows that also reports what it discarded: known is
// false when the payload shape was not recognised, dropped counts skipped
// elements.
func decodeRows(payload []byte) (rows []StudentGradeRow, dropped int, known bool) {
	elems := Unwrap(payload)
	rows = make([]StudentGradeRow, 0, len(elems))
	for _, el := range elems {
		var raw rawRow
		if err := json.Unmarshal(el, &raw); err != nil {
			dropped++
			continue
		}
		rows = append(rows, raw.row())
	}
	return rows, dropped, elems != nil
}

type rawRow struct {
	UserID        int64       `json:"userId"`
	StudentName   string      `json:"studentName"`
	StudentID     looseString `json:"studentId"`
	TotalScore    *float64    `json:"totalScore"`
	TotalPoints   *float64    `json:"totalPoints"`
	ProblemGrades []rawGrade  `json:"problemGrades"`
}

type rawGrade struct {
	ProblemID   int64    `json:"problemId"`
	Score       *float64 `json:"score"`
	Submitted   bool     `json:"submitted"`
	SubmittedAt *string  `json:"submittedAt"`
	IsOnTime    bool     `json:"isOnTime"`
}

func (r rawRow) row() StudentGradeRow {
	out := StudentGradeRow{
		UserID:        r.UserID,
		StudentName:   r.StudentName,
		StudentID:     string(r.StudentID),
		ProblemGrades: make([]ProblemGrade, 0, len(r.ProblemGrades)),
	}
	if r.TotalScore != nil {
		out.TotalScore = *r.TotalScore
	}
	if r.TotalPoints != nil {
		out.TotalPoints = *r.TotalPoints
	}
	for _, g := range r.ProblemGrades {
		pg := ProblemGrade{
			ProblemID: g.ProblemID,
			Submitted: g.Submitted,
			IsOnTime:  g.IsOnTime,
		}
		if g.Score != nil {
			s := *g.Score
			pg.Score = &s
		}
		if g.SubmittedAt != nil {
			if ts, err := time.Parse(time.RFC3339, *g.SubmittedAt); err == nil {
				pg.SubmittedAt = &ts
			}
		}
		out.ProblemGrades = append(out.ProblemGrades, pg)
	}
	return out
}

// looseString reads a JSON string or number; student numbers arrive as both.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*s = looseString(strconv.FormatInt(i, 10))
		return nil
	}
	*s = looseString(n.String())
	return nil
}

// applyAuthoritativeTotals sets every row's TotalPoints to the item's
// problem-weight sum when the item's problems are known.
func applyAuthoritativeTotals(rows []StudentGradeRow, item AssessmentItem) []StudentGradeRow {
	if len(item.Problems) == 0 {
		return rows
	}
	out := make([]StudentGradeRow, len(rows))
	for i, r := range rows {
		r.TotalPoints = item.TotalPoints
		out[i] = r
	}
	return out
}
