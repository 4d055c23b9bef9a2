package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

// Fixture is a YAML description of sections to load into the local database
// for offline use and demos.
type Fixture struct {
	Sections []FixtureSection `yaml:"sections"`
}

type FixtureSection struct {
	ID          int64               `yaml:"id"`
	Title       string              `yaml:"title"`
	Students    []FixtureStudent    `yaml:"students"`
	Assignments []FixtureAssessment `yaml:"assignments"`
	Quizzes     []FixtureAssessment `yaml:"quizzes"`
}

type FixtureStudent struct {
	UserID    int64  `yaml:"userId"`
	Name      string `yaml:"name"`
	StudentID string `yaml:"studentId"`
}

type FixtureAssessment struct {
	ID       int64            `yaml:"id"`
	Title    string           `yaml:"title"`
	DueAt    *time.Time       `yaml:"dueAt"`
	Problems []FixtureProblem `yaml:"problems"`
	Grades   []FixtureGrade   `yaml:"grades"`
	Code     []FixtureCode    `yaml:"code"`
}

type FixtureProblem struct {
	ID     int64    `yaml:"id"`
	Title  string   `yaml:"title"`
	Points *float64 `yaml:"points"`
}

type FixtureGrade struct {
	UserID      int64      `yaml:"userId"`
	ProblemID   int64      `yaml:"problemId"`
	Score       *float64   `yaml:"score"`
	Submitted   bool       `yaml:"submitted"`
	SubmittedAt *time.Time `yaml:"submittedAt"`
	OnTime      bool       `yaml:"onTime"`
}

type FixtureCode struct {
	UserID    int64  `yaml:"userId"`
	ProblemID int64  `yaml:"problemId"`
	Code      string `yaml:"code"`
}

func LoadFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return f, nil
}

// Seed writes the fixture in one transaction. Existing rows are overwritten.
func (s *Store) Seed(ctx context.Context, f Fixture) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, sec := range f.Sections {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sections (id, title) VALUES ($1,$2)
				 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title`, sec.ID, sec.Title); err != nil {
				return fmt.Errorf("section %d: %w", sec.ID, err)
			}
			for _, st := range sec.Students {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO students (section_id, user_id, name, student_no) VALUES ($1,$2,$3,$4)
					 ON CONFLICT (section_id, user_id) DO UPDATE SET name=EXCLUDED.name, student_no=EXCLUDED.student_no`,
					sec.ID, st.UserID, st.Name, st.StudentID); err != nil {
					return fmt.Errorf("student %d: %w", st.UserID, err)
				}
			}
			for i, a := range sec.Assignments {
				if err := seedAssessment(ctx, tx, sec.ID, gradebook.KindAssignment, i, a); err != nil {
					return err
				}
			}
			for i, q := range sec.Quizzes {
				if err := seedAssessment(ctx, tx, sec.ID, gradebook.KindQuiz, i, q); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func seedAssessment(ctx context.Context, tx *sql.Tx, sectionID int64, kind gradebook.Kind, pos int, a FixtureAssessment) error {
	var due *int64
	if a.DueAt != nil {
		u := a.DueAt.Unix()
		due = &u
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO assessments (id, section_id, kind, title, due_at, position) VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET section_id=EXCLUDED.section_id, kind=EXCLUDED.kind, title=EXCLUDED.title,
		   due_at=EXCLUDED.due_at, position=EXCLUDED.position`,
		a.ID, sectionID, string(kind), a.Title, due, pos); err != nil {
		return fmt.Errorf("%s %d: %w", kind, a.ID, err)
	}
	for i, p := range a.Problems {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO problems (assessment_id, problem_id, title, points, position) VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (assessment_id, problem_id) DO UPDATE SET title=EXCLUDED.title, points=EXCLUDED.points, position=EXCLUDED.position`,
			a.ID, p.ID, p.Title, p.Points, i); err != nil {
			return fmt.Errorf("%s %d problem %d: %w", kind, a.ID, p.ID, err)
		}
	}
	for _, g := range a.Grades {
		var at *int64
		if g.SubmittedAt != nil {
			u := g.SubmittedAt.Unix()
			at = &u
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO grades (assessment_id, user_id, problem_id, score, submitted, submitted_at, on_time)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)
			 ON CONFLICT (assessment_id, user_id, problem_id) DO UPDATE SET score=EXCLUDED.score,
			   submitted=EXCLUDED.submitted, submitted_at=EXCLUDED.submitted_at, on_time=EXCLUDED.on_time`,
			a.ID, g.UserID, g.ProblemID, g.Score, boolInt(g.Submitted), at, boolInt(g.OnTime)); err != nil {
			return fmt.Errorf("%s %d grade %d/%d: %w", kind, a.ID, g.UserID, g.ProblemID, err)
		}
	}
	for _, c := range a.Code {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accepted_code (assessment_id, user_id, problem_id, code) VALUES ($1,$2,$3,$4)
			 ON CONFLICT (assessment_id, user_id, problem_id) DO UPDATE SET code=EXCLUDED.code`,
			a.ID, c.UserID, c.ProblemID, c.Code); err != nil {
			return fmt.Errorf("%s %d code %d/%d: %w", kind, a.ID, c.UserID, c.ProblemID, err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
