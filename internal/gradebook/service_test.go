package gradebook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
)

const section = int64(100)

func seedCourse(t *testing.T) *fakeSource {
	t.Helper()
	f := newFakeSource()
	f.assignments = []gradebook.AssessmentItem{
		item(gradebook.KindAssignment, 1, "HW1", prob(1, "p1", 5)),
		item(gradebook.KindAssignment, 2, "HW2", prob(2, "p2", 5)),
		item(gradebook.KindAssignment, 3, "HW3", prob(3, "p3", 0)),
	}
	for _, a := range f.assignments {
		f.problems[a.ID] = a.Problems
	}
	f.quizzes = []gradebook.AssessmentItem{
		item(gradebook.KindQuiz, 11, week3, prob(21, "P1", 10)),
		item(gradebook.KindQuiz, 12, week3, prob(22, "P2", 5)),
	}
	f.setRows(gradebook.KindAssignment, 1, []gradebook.StudentGradeRow{
		row(10, "Kim", "2024001", 4, 5, graded(1, 4)),
		row(20, "Lee", "2024002", 0, 5, ungraded(1)),
	})
	f.setRows(gradebook.KindAssignment, 2, []gradebook.StudentGradeRow{
		row(10, "Kim", "2024001", 5, 5, graded(2, 5)),
	})
	f.setRows(gradebook.KindAssignment, 3, []gradebook.StudentGradeRow{
		row(20, "Lee", "2024002", 1, 1, graded(3, 1)),
	})
	f.setRows(gradebook.KindQuiz, 11, []gradebook.StudentGradeRow{row(10, "Kim", "2024001", 8, 10, graded(21, 8))})
	f.setRows(gradebook.KindQuiz, 12, []gradebook.StudentGradeRow{row(10, "Kim", "2024001", 3, 5, graded(22, 3))})
	return f
}

func TestCourseGradebook_PartialFetchResilience(t *testing.T) {
	f := seedCourse(t)
	f.gradeErr[gkey(gradebook.KindAssignment, 2)] = errors.New("upstream 500")
	svc := gradebook.NewService(f, nil, gradebook.WithConcurrency(2))

	roster, err := svc.CourseGradebook(context.Background(), section)
	require.NoError(t, err)

	require.Len(t, roster.Items, 4)
	assert.Equal(t, int64(2), roster.Items[1].ID)
	for _, st := range roster.Students {
		_, ok := st.Assignments[2]
		assert.False(t, ok, "failed item has no students")
	}
	kim := roster.Students[0]
	assert.Equal(t, 4.0, kim.Assignments[1].TotalScore)
	lee := roster.Students[1]
	assert.Equal(t, 1.0, lee.Assignments[3].TotalScore)
}

func TestCourseGradebook_GroupsQuizSeries(t *testing.T) {
	svc := gradebook.NewService(seedCourse(t), nil)
	roster, err := svc.CourseGradebook(context.Background(), section)
	require.NoError(t, err)

	var quizItems []gradebook.AssessmentItem
	for _, it := range roster.Items {
		if it.Type == gradebook.KindQuiz {
			quizItems = append(quizItems, it)
		}
	}
	require.Len(t, quizItems, 1)
	assert.Equal(t, 15.0, quizItems[0].TotalPoints)

	st := roster.Students[0].Quizzes[11]
	assert.Equal(t, 11.0, st.TotalScore)
	assert.Equal(t, 15.0, st.TotalPoints)
}

func TestCourseGradebook_MetadataFailureIsNoData(t *testing.T) {
	f := seedCourse(t)
	f.metaErr = errors.New("sections api down")
	svc := gradebook.NewService(f, nil)

	roster, err := svc.CourseGradebook(context.Background(), section)
	assert.ErrorIs(t, err, gradebook.ErrNoData)
	assert.True(t, roster.Empty())
}

func TestCourseGradebook_Idempotent(t *testing.T) {
	svc := gradebook.NewService(seedCourse(t), nil)
	a, err := svc.CourseGradebook(context.Background(), section)
	require.NoError(t, err)
	b, err := svc.CourseGradebook(context.Background(), section)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAssessmentGrades_AuthoritativeTotals(t *testing.T) {
	f := seedCourse(t)
	f.setRows(gradebook.KindAssignment, 1, []gradebook.StudentGradeRow{row(10, "Kim", "2024001", 4, 99, graded(1, 4))})
	svc := gradebook.NewService(f, nil)

	v, err := svc.AssessmentGrades(context.Background(), section, gradebook.KindAssignment, 1)
	require.NoError(t, err)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, 5.0, v.Rows[0].TotalPoints)
	assert.Equal(t, "HW1", v.Item.Title)
}

func TestAssessmentGrades_FetchFailureGivesEmptyView(t *testing.T) {
	f := seedCourse(t)
	f.gradeErr[gkey(gradebook.KindQuiz, 11)] = errors.New("timeout")
	svc := gradebook.NewService(f, nil)

	v, err := svc.AssessmentGrades(context.Background(), section, gradebook.KindQuiz, 11)
	require.NoError(t, err)
	assert.Empty(t, v.Rows)
	assert.Equal(t, week3, v.Item.Title)

	_, err = svc.AssessmentGrades(context.Background(), section, gradebook.KindQuiz, 999)
	assert.ErrorIs(t, err, gradebook.ErrNoData)
}

func TestAssessmentStats(t *testing.T) {
	svc := gradebook.NewService(seedCourse(t), nil)
	st, err := svc.AssessmentStats(context.Background(), section, gradebook.KindAssignment, 1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, st.Problems[0].Avg)
	assert.Equal(t, 2, st.Problems[0].TotalCount)

	f := seedCourse(t)
	f.setRows(gradebook.KindAssignment, 2, nil)
	_, err = gradebook.NewService(f, nil).AssessmentStats(context.Background(), section, gradebook.KindAssignment, 2)
	assert.ErrorIs(t, err, gradebook.ErrNoData)
}

func TestSaveAssignmentPoints_ResolvesFallbacks(t *testing.T) {
	f := seedCourse(t)
	f.problems[1] = []gradebook.ProblemSpec{prob(1, "p1", 0), prob(4, "p4", 3)}
	svc := gradebook.NewService(f, nil)

	_, err := svc.SaveAssignmentPoints(context.Background(), section, 1, map[int64]float64{4: 0})
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 1, 4: 3}, f.pointsCalls[1])
	assert.Equal(t, 1, f.gradeCalls[gkey(gradebook.KindAssignment, 1)], "grades refetched after save")
}

func TestSaveCoursePoints_CountsFailures(t *testing.T) {
	f := seedCourse(t)
	f.pointsErr[2] = errors.New("rejected")
	svc := gradebook.NewService(f, nil)

	res, err := svc.SaveCoursePoints(context.Background(), section, map[int64]map[int64]float64{1: {1: 8}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "2 items saved, 1 failed", res.String())

	assert.Equal(t, map[int64]float64{1: 8}, f.pointsCalls[1])
	assert.Equal(t, map[int64]float64{3: 1}, f.pointsCalls[3])
	require.Len(t, res.Refreshed, 2)
	assert.Equal(t, 8.0, res.Refreshed[0].Item.TotalPoints)
	assert.Equal(t, 1, f.gradeCalls[gkey(gradebook.KindAssignment, 1)])
	assert.Equal(t, 0, f.gradeCalls[gkey(gradebook.KindAssignment, 2)])
	assert.Equal(t, 1, f.gradeCalls[gkey(gradebook.KindAssignment, 3)])
	assert.Empty(t, f.pointsCalls[11], "quiz weights are not bulk-edited")
}

func TestSaveCoursePoints_SkipsItemsWithoutProblems(t *testing.T) {
	f := seedCourse(t)
	f.assignments = append(f.assignments, item(gradebook.KindAssignment, 4, "Reading"))
	svc := gradebook.NewService(f, nil)

	res, err := svc.SaveCoursePoints(context.Background(), section, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Saved)
	_, called := f.pointsCalls[4]
	assert.False(t, called)
}

func TestSaveEdit_FailureKeepsSessionOpen(t *testing.T) {
	f := seedCourse(t)
	f.saveErr = errors.New("write rejected")
	svc := gradebook.NewService(f, nil)
	k := cell(section, 1, 20, 1)

	st, err := svc.BeginEdit(context.Background(), k)
	require.NoError(t, err)
	assert.Nil(t, st.Value, "ungraded cell opens empty")
	_, err = svc.SaveEdit(context.Background(), k, "")
	assert.ErrorIs(t, err, gradebook.ErrEmptyScore)

	_, err = svc.Edits().Update(k, score(3))
	require.NoError(t, err)
	_, err = svc.SaveEdit(context.Background(), k, "late")
	require.Error(t, err)
	st, ok := svc.Edits().Get(k)
	require.True(t, ok, "edit stays open for retry")
	assert.Equal(t, 3.0, *st.Value)

	f.saveErr = nil
	v, err := svc.SaveEdit(context.Background(), k, "late")
	require.NoError(t, err)
	_, ok = svc.Edits().Get(k)
	assert.False(t, ok)
	require.Len(t, f.saved, 1)
	assert.Equal(t, gradebook.GradeInput{UserID: 20, ProblemID: 1, Score: 3, Comment: "late"}, f.saved[0])
	assert.Equal(t, "HW1", v.Item.Title)
}

func TestSaveEdit_RejectsNegativeAndUnknownCells(t *testing.T) {
	svc := gradebook.NewService(seedCourse(t), nil)
	k := cell(section, 1, 10, 1)
	_, err := svc.SaveEdit(context.Background(), k, "")
	assert.ErrorIs(t, err, gradebook.ErrNoSession)

	_, err = svc.BeginEdit(context.Background(), k)
	require.NoError(t, err)
	_, err = svc.Edits().Update(k, score(-2))
	require.NoError(t, err)
	_, err = svc.SaveEdit(context.Background(), k, "")
	assert.ErrorIs(t, err, gradebook.ErrInvalidScore)
}

func TestBeginEdit_QuizCellsAreReadOnly(t *testing.T) {
	svc := gradebook.NewService(seedCourse(t), nil)
	_, err := svc.BeginEdit(context.Background(), gradebook.CellKey{SectionID: section, Kind: gradebook.KindQuiz, AssessmentID: 11, UserID: 10, ProblemID: 21})
	assert.ErrorIs(t, err, gradebook.ErrReadOnlyKind)
}

func TestSaveAllEdits_PartialFailure(t *testing.T) {
	f := seedCourse(t)
	f.bulkErr[2] = errors.New("rejected")
	svc := gradebook.NewService(f, nil)

	for _, k := range []gradebook.CellKey{cell(section, 1, 10, 1), cell(section, 1, 20, 1), cell(section, 2, 10, 2)} {
		_, err := svc.BeginEdit(context.Background(), k)
		require.NoError(t, err)
		_, err = svc.Edits().Update(k, score(2))
		require.NoError(t, err)
	}
	empty := cell(section, 3, 20, 3)
	_, err := svc.BeginEdit(context.Background(), empty)
	require.NoError(t, err)
	_, err = svc.Edits().Update(empty, nil)
	require.NoError(t, err)

	res, err := svc.SaveAllEdits(context.Background(), section)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, f.bulkSaved[1], 2)
	require.Len(t, res.Refreshed, 1)

	open := svc.Edits().Open(section)
	require.Len(t, open, 2)
	assert.Equal(t, int64(2), open[0].Key.AssessmentID)
	assert.Equal(t, empty, open[1].Key)
}

func TestBeginEdit_SeedsFromFetchedCell(t *testing.T) {
	svc := gradebook.NewService(seedCourse(t), nil)
	ctx := context.Background()

	st, err := svc.BeginEdit(ctx, cell(section, 1, 10, 1))
	require.NoError(t, err)
	require.NotNil(t, st.Value)
	assert.Equal(t, 4.0, *st.Value)
	assert.Equal(t, 4.0, *st.Original)

	st, err = svc.BeginEdit(ctx, cell(section, 1, 20, 1))
	require.NoError(t, err)
	assert.Nil(t, st.Value)
	assert.Nil(t, st.Original)

	_, err = svc.BeginEdit(ctx, cell(section, 1, 99, 1))
	assert.ErrorIs(t, err, gradebook.ErrNoData, "unknown student")
	_, err = svc.BeginEdit(ctx, cell(section, 1, 10, 7))
	assert.ErrorIs(t, err, gradebook.ErrNoData, "unknown problem")
	_, err = svc.BeginEdit(ctx, cell(section, 9, 10, 1))
	assert.ErrorIs(t, err, gradebook.ErrNoData, "unknown assignment")
	assert.Len(t, svc.Edits().Open(section), 2)
}

func TestSaveEdit_ScoreAbovePointsIsRejected(t *testing.T) {
	f := seedCourse(t)
	svc := gradebook.NewService(f, nil)
	ctx := context.Background()
	k := cell(section, 1, 10, 1)

	_, err := svc.BeginEdit(ctx, k)
	require.NoError(t, err)
	_, err = svc.Edits().Update(k, score(500))
	require.NoError(t, err)
	_, err = svc.SaveEdit(ctx, k, "")
	assert.ErrorIs(t, err, gradebook.ErrInvalidScore)
	assert.Empty(t, f.saved)
	_, ok := svc.Edits().Get(k)
	assert.True(t, ok, "edit stays open")

	_, err = svc.Edits().Update(k, score(5))
	require.NoError(t, err)
	_, err = svc.SaveEdit(ctx, k, "")
	require.NoError(t, err)
	require.Len(t, f.saved, 1)
	assert.Equal(t, 5.0, f.saved[0].Score)
}

func TestSaveAllEdits_ScoreAbovePointsFailsItsBatch(t *testing.T) {
	f := seedCourse(t)
	svc := gradebook.NewService(f, nil)
	ctx := context.Background()

	edits := map[gradebook.CellKey]float64{
		cell(section, 1, 10, 1): 3,
		cell(section, 1, 20, 1): 50,
		cell(section, 2, 10, 2): 5,
		// a zero weight defaults to 1
		cell(section, 3, 20, 3): 2,
	}
	for k, v := range edits {
		_, err := svc.BeginEdit(ctx, k)
		require.NoError(t, err)
		_, err = svc.Edits().Update(k, score(v))
		require.NoError(t, err)
	}

	res, err := svc.SaveAllEdits(ctx, section)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 2, res.Failed)
	assert.Empty(t, f.bulkSaved[1], "valid edits in a rejected batch are not sent")
	assert.Len(t, f.bulkSaved[2], 1)
	assert.Empty(t, f.bulkSaved[3])
	assert.Len(t, svc.Edits().Open(section), 3)
}

func TestCourseGradebook_DiscardsOpenEdits(t *testing.T) {
	svc := gradebook.NewService(seedCourse(t), nil)
	ctx := context.Background()

	_, err := svc.BeginEdit(ctx, cell(section, 1, 10, 1))
	require.NoError(t, err)
	svc.Edits().Begin(cell(section+1, 1, 10, 1), nil)

	_, err = svc.CourseGradebook(ctx, section)
	require.NoError(t, err)
	assert.Empty(t, svc.Edits().Open(section))
	assert.Len(t, svc.Edits().Open(section+1), 1, "other sections keep their edits")
}

func TestCourseGradebook_MetadataFailureKeepsEdits(t *testing.T) {
	f := seedCourse(t)
	svc := gradebook.NewService(f, nil)
	ctx := context.Background()
	_, err := svc.BeginEdit(ctx, cell(section, 1, 10, 1))
	require.NoError(t, err)

	f.metaErr = errors.New("upstream down")
	_, err = svc.CourseGradebook(ctx, section)
	require.ErrorIs(t, err, gradebook.ErrNoData)
	assert.Len(t, svc.Edits().Open(section), 1)
}

func TestFetchRows_LogsDiscardedPayloads(t *testing.T) {
	f := seedCourse(t)
	f.grades[gkey(gradebook.KindAssignment, 1)] = []byte(`{"rows":[]}`)
	f.grades[gkey(gradebook.KindAssignment, 2)] = []byte(`[{"userId":"x"},{"userId":10,"studentName":"Kim"}]`)
	core, logs := observer.New(zap.WarnLevel)
	svc := gradebook.NewService(f, &logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	ctx := context.Background()

	v, err := svc.AssessmentGrades(ctx, section, gradebook.KindAssignment, 1)
	require.NoError(t, err)
	assert.Empty(t, v.Rows)
	unknown := logs.FilterMessage("unrecognised grades payload").All()
	require.Len(t, unknown, 1)
	assert.Equal(t, int64(1), unknown[0].ContextMap()["assessment_id"])

	v, err = svc.AssessmentGrades(ctx, section, gradebook.KindAssignment, 2)
	require.NoError(t, err)
	assert.Len(t, v.Rows, 1)
	skipped := logs.FilterMessage("unreadable grade rows skipped").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, int64(1), skipped[0].ContextMap()["dropped"])
}

func TestAcceptedCode(t *testing.T) {
	f := seedCourse(t)
	f.code["1|10|1"] = "print(42)"
	svc := gradebook.NewService(f, nil)

	code, err := svc.AcceptedCode(context.Background(), section, 1, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, "print(42)", code)
	_, err = svc.AcceptedCode(context.Background(), section, 1, 20, 1)
	assert.Error(t, err)
}

type mapCache struct {
	mu          sync.Mutex
	rows        map[string][]gradebook.StudentGradeRow
	invalidated []string
}

func (c *mapCache) Get(_ context.Context, key string) ([]gradebook.StudentGradeRow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rows[key]
	return r, ok
}

func (c *mapCache) Set(_ context.Context, key string, rows []gradebook.StudentGradeRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[key] = rows
}

func (c *mapCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, key)
	c.invalidated = append(c.invalidated, key)
}

type recorded struct{ typ, key string }

type memRecorder struct{ events []recorded }

func (r *memRecorder) Record(_ context.Context, typ, key string, _ any) error {
	r.events = append(r.events, recorded{typ, key})
	return nil
}

func TestService_CacheAndAudit(t *testing.T) {
	f := seedCourse(t)
	c := &mapCache{rows: map[string][]gradebook.StudentGradeRow{}}
	rec := &memRecorder{}
	svc := gradebook.NewService(f, nil, gradebook.WithCache(c), gradebook.WithRecorder(rec))
	ctx := context.Background()

	_, err := svc.AssessmentGrades(ctx, section, gradebook.KindAssignment, 1)
	require.NoError(t, err)
	_, err = svc.AssessmentGrades(ctx, section, gradebook.KindAssignment, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.gradeCalls[gkey(gradebook.KindAssignment, 1)], "second read served from cache")

	_, err = svc.SaveAssignmentPoints(ctx, section, 1, map[int64]float64{1: 10})
	require.NoError(t, err)
	assert.Contains(t, c.invalidated, gradebook.CacheKey(section, gradebook.KindAssignment, 1))
	assert.Equal(t, 2, f.gradeCalls[gkey(gradebook.KindAssignment, 1)])
	require.Len(t, rec.events, 1)
	assert.Equal(t, gradebook.EventPointsSaved, rec.events[0].typ)
}
