package gradebook_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

/* ---------------- In-memory fake that satisfies gradebook.Source ---------------- */

type fakeSource struct {
	mu sync.Mutex

	assignments []gradebook.AssessmentItem
	quizzes     []gradebook.AssessmentItem
	problems    map[int64][]gradebook.ProblemSpec // assignment id -> problems
	grades      map[string][]byte                 // kind|id -> payload
	code        map[string]string

	metaErr   error
	gradeErr  map[string]error // kind|id -> error
	pointsErr map[int64]error  // assignment id -> error
	saveErr   error
	bulkErr   map[int64]error

	gradeCalls  map[string]int
	pointsCalls map[int64]map[int64]float64
	saved       []gradebook.GradeInput
	bulkSaved   map[int64][]gradebook.GradeInput
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		problems:    map[int64][]gradebook.ProblemSpec{},
		grades:      map[string][]byte{},
		code:        map[string]string{},
		gradeErr:    map[string]error{},
		pointsErr:   map[int64]error{},
		bulkErr:     map[int64]error{},
		gradeCalls:  map[string]int{},
		pointsCalls: map[int64]map[int64]float64{},
		bulkSaved:   map[int64][]gradebook.GradeInput{},
	}
}

func gkey(kind gradebook.Kind, id int64) string { return fmt.Sprintf("%s|%d", kind, id) }

func (f *fakeSource) setRows(kind gradebook.Kind, id int64, rows []gradebook.StudentGradeRow) {
	b, err := json.Marshal(map[string]any{"data": rows})
	if err != nil {
		panic(err)
	}
	f.grades[gkey(kind, id)] = b
}

func (f *fakeSource) fetch(kind gradebook.Kind, id int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := gkey(kind, id)
	f.gradeCalls[k]++
	if err := f.gradeErr[k]; err != nil {
		return nil, err
	}
	return f.grades[k], nil
}

func (f *fakeSource) AssignmentGrades(_ context.Context, _, id int64) ([]byte, error) {
	return f.fetch(gradebook.KindAssignment, id)
}

func (f *fakeSource) QuizGrades(_ context.Context, _, id int64) ([]byte, error) {
	return f.fetch(gradebook.KindQuiz, id)
}

func (f *fakeSource) Assignments(_ context.Context, _ int64) ([]gradebook.AssessmentItem, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return f.assignments, nil
}

func (f *fakeSource) Quizzes(_ context.Context, _ int64) ([]gradebook.AssessmentItem, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return f.quizzes, nil
}

func (f *fakeSource) AssignmentProblems(_ context.Context, _, id int64) ([]gradebook.ProblemSpec, error) {
	p, ok := f.problems[id]
	if !ok {
		return nil, fmt.Errorf("assignment %d not found", id)
	}
	return p, nil
}

func (f *fakeSource) SaveGrade(_ context.Context, _, _ int64, in gradebook.GradeInput) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, in)
	return nil
}

func (f *fakeSource) SaveBulkGrades(_ context.Context, _, id int64, grades []gradebook.GradeInput) error {
	if err := f.bulkErr[id]; err != nil {
		return err
	}
	f.bulkSaved[id] = append(f.bulkSaved[id], grades...)
	return nil
}

func (f *fakeSource) SetBulkProblemPoints(_ context.Context, _, id int64, points map[int64]float64) error {
	if err := f.pointsErr[id]; err != nil {
		return err
	}
	f.pointsCalls[id] = points
	return nil
}

func (f *fakeSource) AcceptedCode(_ context.Context, _, aid, uid, pid int64) (string, error) {
	c, ok := f.code[fmt.Sprintf("%d|%d|%d", aid, uid, pid)]
	if !ok {
		return "", fmt.Errorf("no accepted code")
	}
	return c, nil
}

/* ---------------- builders ---------------- */

func score(v float64) *float64 { return &v }

func row(uid int64, name, sid string, total, points float64, grades ...gradebook.ProblemGrade) gradebook.StudentGradeRow {
	if grades == nil {
		grades = []gradebook.ProblemGrade{}
	}
	return gradebook.StudentGradeRow{
		UserID: uid, StudentName: name, StudentID: sid,
		TotalScore: total, TotalPoints: points, ProblemGrades: grades,
	}
}

func graded(pid int64, v float64) gradebook.ProblemGrade {
	return gradebook.ProblemGrade{ProblemID: pid, Score: score(v), Submitted: true, IsOnTime: true}
}

func ungraded(pid int64) gradebook.ProblemGrade {
	return gradebook.ProblemGrade{ProblemID: pid}
}

func item(kind gradebook.Kind, id int64, title string, problems ...gradebook.ProblemSpec) gradebook.AssessmentItem {
	total := 0.0
	for _, p := range problems {
		total += p.Points
	}
	return gradebook.AssessmentItem{Type: kind, ID: id, Title: title, Problems: problems, TotalPoints: total}
}

func prob(id int64, title string, pts float64) gradebook.ProblemSpec {
	return gradebook.ProblemSpec{ProblemID: id, Title: title, Points: pts}
}
