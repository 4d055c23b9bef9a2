package gradebook

import "context"

// Source is the academic API the gradebook reads from and writes through.
// Grade fetches return the raw payload, bare array or {"data": [...]};
// NormalizeRows deals with both.
type Source interface {
	AssignmentGrades(ctx context.Context, sectionID, assignmentID int64) ([]byte, error)
	QuizGrades(ctx context.Context, sectionID, quizID int64) ([]byte, error)
	Assignments(ctx context.Context, sectionID int64) ([]AssessmentItem, error)
	Quizzes(ctx context.Context, sectionID int64) ([]AssessmentItem, error)
	AssignmentProblems(ctx context.Context, sectionID, assignmentID int64) ([]ProblemSpec, error)

	SaveGrade(ctx context.Context, sectionID, assignmentID int64, in GradeInput) error
	SaveBulkGrades(ctx context.Context, sectionID, assignmentID int64, grades []GradeInput) error
	SetBulkProblemPoints(ctx context.Context, sectionID, assignmentID int64, points map[int64]float64) error

	AcceptedCode(ctx context.Context, sectionID, assignmentID, userID, problemID int64) (string, error)
}

// Cache keeps normalized grade rows per item between fetches.
type Cache interface {
	Get(ctx context.Context, key string) ([]StudentGradeRow, bool)
	Set(ctx context.Context, key string, rows []StudentGradeRow)
	Invalidate(ctx context.Context, key string)
}

// Recorder receives an event for every successful write.
type Recorder interface {
	Record(ctx context.Context, typ, key string, payload any) error
}

const (
	EventGradeSaved      = "GradeSaved"
	EventGradesBulkSaved = "GradesBulkSaved"
	EventPointsSaved     = "PointsSaved"
)
