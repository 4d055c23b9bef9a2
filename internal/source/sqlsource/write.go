package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

const upsertGrade = `INSERT INTO grades (assessment_id, user_id, problem_id, score, comment)
	VALUES ($1,$2,$3,$4,$5)
	ON CONFLICT (assessment_id, user_id, problem_id) DO UPDATE SET score=EXCLUDED.score, comment=EXCLUDED.comment`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) SaveGrade(ctx context.Context, sectionID, assignmentID int64, in gradebook.GradeInput) error {
	if err := s.checkItem(ctx, sectionID, gradebook.KindAssignment, assignmentID); err != nil {
		return err
	}
	return saveGrade(ctx, s.db, assignmentID, in)
}

func (s *Store) SaveBulkGrades(ctx context.Context, sectionID, assignmentID int64, grades []gradebook.GradeInput) error {
	if err := s.checkItem(ctx, sectionID, gradebook.KindAssignment, assignmentID); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, g := range grades {
			if err := saveGrade(ctx, tx, assignmentID, g); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveGrade rejects a score above the problem's weight; a NULL weight counts
// as the default of 1.
func saveGrade(ctx context.Context, db querier, assignmentID int64, in gradebook.GradeInput) error {
	var points sql.NullFloat64
	err := db.QueryRowContext(ctx,
		`SELECT points FROM problems WHERE assessment_id=$1 AND problem_id=$2`, assignmentID, in.ProblemID).Scan(&points)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: problem %d in assignment %d", ErrNotFound, in.ProblemID, assignmentID)
	}
	if err != nil {
		return err
	}
	if limit := gradebook.DefaultPoints(points.Float64); in.Score < 0 || in.Score > limit {
		return fmt.Errorf("%w: score %g outside 0..%g for problem %d", gradebook.ErrInvalidScore, in.Score, limit, in.ProblemID)
	}
	_, err = db.ExecContext(ctx, upsertGrade, assignmentID, in.UserID, in.ProblemID, in.Score, in.Comment)
	return err
}

// SetBulkProblemPoints writes every weight or none.
func (s *Store) SetBulkProblemPoints(ctx context.Context, sectionID, assignmentID int64, points map[int64]float64) error {
	if err := s.checkItem(ctx, sectionID, gradebook.KindAssignment, assignmentID); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for pid, pts := range points {
			res, err := tx.ExecContext(ctx,
				`UPDATE problems SET points=$1 WHERE assessment_id=$2 AND problem_id=$3`, pts, assignmentID, pid)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w: problem %d in assignment %d", ErrNotFound, pid, assignmentID)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
