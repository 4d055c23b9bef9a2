package gradebook

import (
	"fmt"
	"strings"
	"time"
)

// Kind tells assignments and timed tests (quizzes) apart.
type Kind string

const (
	KindAssignment Kind = "assignment"
	KindQuiz       Kind = "quiz"
)

// ParseKind accepts the singular and plural path forms ("assignments", "quiz").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assignment", "assignments":
		return KindAssignment, nil
	case "quiz", "quizzes":
		return KindQuiz, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

type ProblemSpec struct {
	ProblemID int64   `json:"problemId"`
	Title     string  `json:"title"`
	Points    float64 `json:"points"`
}

// ProblemGrade is one student's result on one problem. A nil Score means
// ungraded, which is not the same as a zero score.
type ProblemGrade struct {
	ProblemID   int64      `json:"problemId"`
	Score       *float64   `json:"score"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submittedAt"`
	IsOnTime    bool       `json:"isOnTime"`
}

func (g ProblemGrade) Graded() bool { return g.Score != nil }

// StudentGradeRow is one student's line in the single-assessment view.
type StudentGradeRow struct {
	UserID        int64          `json:"userId"`
	StudentName   string         `json:"studentName"`
	StudentID     string         `json:"studentId"`
	TotalScore    float64        `json:"totalScore"`
	TotalPoints   float64        `json:"totalPoints"`
	ProblemGrades []ProblemGrade `json:"problemGrades"`
}

// Grade returns the row's grade for problemID, if any.
func (r StudentGradeRow) Grade(problemID int64) (ProblemGrade, bool) {
	for _, g := range r.ProblemGrades {
		if g.ProblemID == problemID {
			return g, true
		}
	}
	return ProblemGrade{}, false
}

// AssessmentItem is a gradebook column group. A grouped quiz item stands for
// every timed-test instance that shares its title.
type AssessmentItem struct {
	Type        Kind          `json:"type"`
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Problems    []ProblemSpec `json:"problems"`
	TotalPoints float64       `json:"totalPoints"`
	DueAt       *time.Time    `json:"dueAt"`
}

// SubTotal is a student's aggregate for one assessment item.
type SubTotal struct {
	TotalScore  float64                `json:"totalScore"`
	TotalPoints float64                `json:"totalPoints"`
	Ratio       string                 `json:"ratio"`
	Problems    map[int64]ProblemGrade `json:"problems"`
}

type CourseStudentEntry struct {
	UserID      int64              `json:"userId"`
	StudentName string             `json:"studentName"`
	StudentID   string             `json:"studentId"`
	Assignments map[int64]SubTotal `json:"assignments"`
	Quizzes     map[int64]SubTotal `json:"quizzes"`
}

// SubTotalFor looks up the student's subtotal for an item of the given kind.
func (e CourseStudentEntry) SubTotalFor(kind Kind, id int64) (SubTotal, bool) {
	var st SubTotal
	var ok bool
	switch kind {
	case KindAssignment:
		st, ok = e.Assignments[id]
	case KindQuiz:
		st, ok = e.Quizzes[id]
	}
	return st, ok
}

// Overall sums the student's subtotals in item order. Subtotals for items
// not in the list are ignored.
func (e CourseStudentEntry) Overall(items []AssessmentItem) (score, points float64, ratio string) {
	for _, it := range items {
		st, ok := e.SubTotalFor(it.Type, it.ID)
		if !ok {
			continue
		}
		score += st.TotalScore
		points += st.TotalPoints
	}
	return score, points, Ratio(score, points)
}

// ItemGrades pairs an item with the grade rows fetched for it. Err is set
// when the fetch failed; Rows is empty in that case.
type ItemGrades struct {
	Item AssessmentItem
	Rows []StudentGradeRow
	Err  error
}

// Roster is the course view: every registered item plus one entry per student.
type Roster struct {
	Items    []AssessmentItem     `json:"items"`
	Students []CourseStudentEntry `json:"students"`
}

func (r Roster) Empty() bool { return len(r.Items) == 0 && len(r.Students) == 0 }

// AssessmentView is the single-assessment view.
type AssessmentView struct {
	Item AssessmentItem    `json:"item"`
	Rows []StudentGradeRow `json:"rows"`
}

// GradeInput is one score write for saveGrade / saveBulkGrades.
type GradeInput struct {
	UserID    int64   `json:"userId" validate:"required"`
	ProblemID int64   `json:"problemId" validate:"required"`
	Score     float64 `json:"score" validate:"gte=0"`
	Comment   string  `json:"comment,omitempty" validate:"max=2000"`
}
