package gradebook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-gradebook/internal/logger"
)

// Service runs the gradebook against a Source: it fetches, normalizes,
// groups and aggregates grades, and writes scores and point weights back.
type Service struct {
	src         Source
	log         *logger.Logger
	cache       Cache
	audit       Recorder
	edits       *EditStore
	validate    *validator.Validate
	concurrency int
}

type Option func(*Service)

func WithCache(c Cache) Option          { return func(s *Service) { s.cache = c } }
func WithRecorder(r Recorder) Option    { return func(s *Service) { s.audit = r } }
func WithEditStore(e *EditStore) Option { return func(s *Service) { s.edits = e } }

// WithConcurrency caps simultaneous grade fetches; 0 means no cap.
func WithConcurrency(n int) Option { return func(s *Service) { s.concurrency = n } }

func NewService(src Source, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		src:      src,
		log:      log,
		validate: validator.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.edits == nil {
		s.edits = NewEditStore(time.Now)
	}
	return s
}

func (s *Service) Edits() *EditStore { return s.edits }

// CacheKey names one item's grade rows in the cache.
func CacheKey(sectionID int64, kind Kind, id int64) string {
	return fmt.Sprintf("gradebook:%d:%s:%d", sectionID, kind, id)
}

func (s *Service) fetchRows(ctx context.Context, sectionID int64, kind Kind, id int64) ([]StudentGradeRow, error) {
	key := CacheKey(sectionID, kind, id)
	if s.cache != nil {
		if rows, ok := s.cache.Get(ctx, key); ok {
			return rows, nil
		}
	}
	var (
		payload []byte
		err     error
	)
	switch kind {
	case KindAssignment:
		payload, err = s.src.AssignmentGrades(ctx, sectionID, id)
	case KindQuiz:
		payload, err = s.src.QuizGrades(ctx, sectionID, id)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s %d grades: %w", kind, id, err)
	}
	rows, dropped, known := decodeRows(payload)
	if !known {
		s.log.Warn("unrecognised grades payload", "section_id", sectionID, "kind", kind, "assessment_id", id, "bytes", len(payload))
	} else if dropped > 0 {
		s.log.Warn("unreadable grade rows skipped", "section_id", sectionID, "kind", kind, "assessment_id", id, "dropped", dropped)
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, rows)
	}
	return rows, nil
}

func (s *Service) invalidate(ctx context.Context, sectionID int64, kind Kind, id int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, CacheKey(sectionID, kind, id))
	}
}

func (s *Service) record(ctx context.Context, typ, key string, payload any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, typ, key, payload); err != nil {
		s.log.Warn("audit record failed", "type", typ, "key", key, "error", err)
	}
}

// items fetches item metadata of one kind and normalizes the weights.
func (s *Service) items(ctx context.Context, sectionID int64, kind Kind) ([]AssessmentItem, error) {
	var (
		raw []AssessmentItem
		err error
	)
	switch kind {
	case KindAssignment:
		raw, err = s.src.Assignments(ctx, sectionID)
	case KindQuiz:
		raw, err = s.src.Quizzes(ctx, sectionID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s items: %w", kind, err)
	}
	out := make([]AssessmentItem, len(raw))
	for i, it := range raw {
		out[i] = NormalizeItem(it, kind)
	}
	return out, nil
}

// AssessmentGrades builds the single-assessment view. A failed grade fetch is
// logged and yields a view without rows; failed metadata yields ErrNoData.
func (s *Service) AssessmentGrades(ctx context.Context, sectionID int64, kind Kind, id int64) (AssessmentView, error) {
	items, err := s.items(ctx, sectionID, kind)
	if err != nil {
		s.log.Warn("assessment metadata fetch failed", "section_id", sectionID, "kind", kind, "error", err)
		return AssessmentView{}, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	var (
		item  AssessmentItem
		found bool
	)
	for _, it := range items {
		if it.ID == id {
			item, found = it, true
			break
		}
	}
	if !found {
		return AssessmentView{}, fmt.Errorf("%w: %s %d not in section %d", ErrNoData, kind, id, sectionID)
	}

	if kind == KindAssignment {
		item = s.withProblems(ctx, sectionID, item)
	}
	return s.view(ctx, sectionID, item), nil
}

// withProblems replaces an assignment's problem list with the one from the
// problems endpoint. On failure the listed problems are kept.
func (s *Service) withProblems(ctx context.Context, sectionID int64, item AssessmentItem) AssessmentItem {
	problems, err := s.src.AssignmentProblems(ctx, sectionID, item.ID)
	if err != nil {
		s.log.Warn("assignment problems fetch failed", "section_id", sectionID, "assessment_id", item.ID, "error", err)
		return item
	}
	item.Problems = NormalizeProblems(problems)
	item.TotalPoints = sumPoints(item.Problems)
	return item
}

// view fetches an item's rows; a fetch failure leaves the rows empty.
func (s *Service) view(ctx context.Context, sectionID int64, item AssessmentItem) AssessmentView {
	rows, err := s.fetchRows(ctx, sectionID, item.Type, item.ID)
	if err != nil {
		s.log.Warn("grade fetch failed", "section_id", sectionID, "kind", item.Type, "assessment_id", item.ID, "error", err)
		rows = []StudentGradeRow{}
	}
	return AssessmentView{Item: item, Rows: applyAuthoritativeTotals(rows, item)}
}

// CourseGradebook builds the course roster. Metadata of both kinds is
// required; grades are fetched concurrently and a failing item is kept as an
// empty column. A rebuilt roster discards the section's open edits.
func (s *Service) CourseGradebook(ctx context.Context, sectionID int64) (Roster, error) {
	var assignments, quizzes []AssessmentItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assignments, err = s.items(gctx, sectionID, KindAssignment)
		return err
	})
	g.Go(func() error {
		var err error
		quizzes, err = s.items(gctx, sectionID, KindQuiz)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Warn("course metadata fetch failed", "section_id", sectionID, "error", err)
		return Roster{}, fmt.Errorf("%w: %w", ErrNoData, err)
	}

	all := make([]AssessmentItem, 0, len(assignments)+len(quizzes))
	all = append(all, assignments...)
	all = append(all, quizzes...)
	fetched := s.fetchAll(ctx, sectionID, all)

	roster := Aggregate(fetched[:len(assignments)], GroupQuizzesByTitle(fetched[len(assignments):]))
	if n := s.edits.ClearSection(sectionID); n > 0 {
		s.log.Info("open edits discarded on roster refresh", "section_id", sectionID, "edits", n)
	}
	s.log.Debug("course gradebook built", "section_id", sectionID, "items", len(roster.Items), "students", len(roster.Students))
	return roster, nil
}

func (s *Service) fetchAll(ctx context.Context, sectionID int64, items []AssessmentItem) []ItemGrades {
	out := make([]ItemGrades, len(items))
	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			if it.Type == KindAssignment && len(it.Problems) == 0 {
				it = s.withProblems(ctx, sectionID, it)
			}
			rows, err := s.fetchRows(ctx, sectionID, it.Type, it.ID)
			if err != nil {
				s.log.Warn("grade fetch failed", "section_id", sectionID, "kind", it.Type, "assessment_id", it.ID, "error", err)
				out[i] = ItemGrades{Item: it, Rows: []StudentGradeRow{}, Err: err}
				return nil
			}
			out[i] = ItemGrades{Item: it, Rows: applyAuthoritativeTotals(rows, it)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// AssessmentStats computes statistics for one item. An item without
// students gives ErrNoData.
func (s *Service) AssessmentStats(ctx context.Context, sectionID int64, kind Kind, id int64) (Stats, error) {
	v, err := s.AssessmentGrades(ctx, sectionID, kind, id)
	if err != nil {
		return Stats{}, err
	}
	st, ok := ComputeStats(v.Rows)
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s %d has no students", ErrNoData, kind, id)
	}
	return st, nil
}

// AcceptedCode returns a student's accepted submission for display.
func (s *Service) AcceptedCode(ctx context.Context, sectionID, assignmentID, userID, problemID int64) (string, error) {
	code, err := s.src.AcceptedCode(ctx, sectionID, assignmentID, userID, problemID)
	if err != nil {
		return "", fmt.Errorf("accepted code: %w", err)
	}
	return code, nil
}
