// Package sqlsource serves the gradebook from a local SQL database. It is the
// offline counterpart of the upstream academic API and speaks the same
// payload shapes.
package sqlsource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

var _ gradebook.Source = (*Store)(nil)

func (s *Store) AssignmentGrades(ctx context.Context, sectionID, assignmentID int64) ([]byte, error) {
	return s.grades(ctx, sectionID, gradebook.KindAssignment, assignmentID)
}

func (s *Store) QuizGrades(ctx context.Context, sectionID, quizID int64) ([]byte, error) {
	return s.grades(ctx, sectionID, gradebook.KindQuiz, quizID)
}

func (s *Store) Assignments(ctx context.Context, sectionID int64) ([]gradebook.AssessmentItem, error) {
	return s.items(ctx, sectionID, gradebook.KindAssignment)
}

func (s *Store) Quizzes(ctx context.Context, sectionID int64) ([]gradebook.AssessmentItem, error) {
	return s.items(ctx, sectionID, gradebook.KindQuiz)
}

func (s *Store) AssignmentProblems(ctx context.Context, sectionID, assignmentID int64) ([]gradebook.ProblemSpec, error) {
	if err := s.checkItem(ctx, sectionID, gradebook.KindAssignment, assignmentID); err != nil {
		return nil, err
	}
	return s.problems(ctx, assignmentID)
}

func (s *Store) items(ctx context.Context, sectionID int64, kind gradebook.Kind) ([]gradebook.AssessmentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, due_at FROM assessments WHERE section_id=$1 AND kind=$2 ORDER BY position, id`,
		sectionID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gradebook.AssessmentItem
	for rows.Next() {
		it := gradebook.AssessmentItem{Type: kind}
		var due sql.NullInt64
		if err := rows.Scan(&it.ID, &it.Title, &due); err != nil {
			return nil, err
		}
		if due.Valid {
			t := time.Unix(due.Int64, 0).UTC()
			it.DueAt = &t
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		ps, err := s.problems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Problems = ps
	}
	return out, nil
}

// problems returns stored weights as-is; a NULL weight comes back as 0 and is
// defaulted by the gradebook.
func (s *Store) problems(ctx context.Context, assessmentID int64) ([]gradebook.ProblemSpec, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT problem_id, title, points FROM problems WHERE assessment_id=$1 ORDER BY position, problem_id`,
		assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []gradebook.ProblemSpec{}
	for rows.Next() {
		var p gradebook.ProblemSpec
		var pts sql.NullFloat64
		if err := rows.Scan(&p.ProblemID, &p.Title, &pts); err != nil {
			return nil, err
		}
		p.Points = pts.Float64
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) checkItem(ctx context.Context, sectionID int64, kind gradebook.Kind, id int64) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM assessments WHERE id=$1 AND section_id=$2 AND kind=$3`,
		id, sectionID, string(kind)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %d in section %d", ErrNotFound, kind, id, sectionID)
	}
	return err
}

type gradeJSON struct {
	ProblemID   int64    `json:"problemId"`
	Score       *float64 `json:"score"`
	Submitted   bool     `json:"submitted"`
	SubmittedAt *string  `json:"submittedAt"`
	IsOnTime    bool     `json:"isOnTime"`
}

type rowJSON struct {
	UserID        int64       `json:"userId"`
	StudentName   string      `json:"studentName"`
	StudentID     string      `json:"studentId"`
	TotalScore    float64     `json:"totalScore"`
	TotalPoints   float64     `json:"totalPoints"`
	ProblemGrades []gradeJSON `json:"problemGrades"`
}

// grades builds the {"data": [...]} payload for one item: every enrolled
// student, with the grades recorded for them.
func (s *Store) grades(ctx context.Context, sectionID int64, kind gradebook.Kind, id int64) ([]byte, error) {
	if err := s.checkItem(ctx, sectionID, kind, id); err != nil {
		return nil, err
	}
	problems, err := s.problems(ctx, id)
	if err != nil {
		return nil, err
	}
	var totalPoints float64
	for _, p := range problems {
		totalPoints += gradebook.DefaultPoints(p.Points)
	}

	srows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, student_no FROM students WHERE section_id=$1 ORDER BY name, user_id`, sectionID)
	if err != nil {
		return nil, err
	}
	var out []*rowJSON
	byUser := map[int64]*rowJSON{}
	for srows.Next() {
		r := &rowJSON{TotalPoints: totalPoints, ProblemGrades: []gradeJSON{}}
		if err := srows.Scan(&r.UserID, &r.StudentName, &r.StudentID); err != nil {
			srows.Close()
			return nil, err
		}
		out = append(out, r)
		byUser[r.UserID] = r
	}
	srows.Close()
	if err := srows.Err(); err != nil {
		return nil, err
	}

	grows, err := s.db.QueryContext(ctx,
		`SELECT g.user_id, g.problem_id, g.score, g.submitted, g.submitted_at, g.on_time
		   FROM grades g JOIN problems p ON p.assessment_id=g.assessment_id AND p.problem_id=g.problem_id
		  WHERE g.assessment_id=$1 ORDER BY g.user_id, p.position, g.problem_id`, id)
	if err != nil {
		return nil, err
	}
	defer grows.Close()
	for grows.Next() {
		var (
			uid       int64
			g         gradeJSON
			score     sql.NullFloat64
			submitted int
			at        sql.NullInt64
			onTime    int
		)
		if err := grows.Scan(&uid, &g.ProblemID, &score, &submitted, &at, &onTime); err != nil {
			return nil, err
		}
		r, ok := byUser[uid]
		if !ok {
			continue
		}
		if score.Valid {
			v := score.Float64
			g.Score = &v
			r.TotalScore += v
		}
		g.Submitted = submitted != 0
		g.IsOnTime = onTime != 0
		if at.Valid {
			ts := time.Unix(at.Int64, 0).UTC().Format(time.RFC3339)
			g.SubmittedAt = &ts
		}
		r.ProblemGrades = append(r.ProblemGrades, g)
	}
	if err := grows.Err(); err != nil {
		return nil, err
	}

	data := make([]rowJSON, 0, len(out))
	for _, r := range out {
		data = append(data, *r)
	}
	return json.Marshal(map[string]any{"data": data})
}

func (s *Store) AcceptedCode(ctx context.Context, sectionID, assignmentID, userID, problemID int64) (string, error) {
	if err := s.checkItem(ctx, sectionID, gradebook.KindAssignment, assignmentID); err != nil {
		return "", err
	}
	var code string
	err := s.db.QueryRowContext(ctx,
		`SELECT code FROM accepted_code WHERE assessment_id=$1 AND user_id=$2 AND problem_id=$3`,
		assignmentID, userID, problemID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: accepted code for user %d problem %d", ErrNotFound, userID, problemID)
	}
	return code, err
}
