package gradebook_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

func TestNormalizeRows_BareAndWrapped(t *testing.T) {
	bare := `[{"userId":7,"studentName":"Kim","studentId":"2024001","totalScore":8,"totalPoints":10,
		"problemGrades":[{"problemId":1,"score":8,"submitted":true,"submittedAt":"2024-03-01T10:00:00Z","isOnTime":true}]}]`
	wrapped := `{"data":` + bare + `}`

	for name, payload := range map[string]string{"bare": bare, "wrapped": wrapped} {
		t.Run(name, func(t *testing.T) {
			rows := gradebook.NormalizeRows([]byte(payload))
			require.Len(t, rows, 1)
			r := rows[0]
			assert.Equal(t, int64(7), r.UserID)
			assert.Equal(t, "2024001", r.StudentID)
			assert.Equal(t, 8.0, r.TotalScore)
			require.Len(t, r.ProblemGrades, 1)
			require.NotNil(t, r.ProblemGrades[0].Score)
			assert.Equal(t, 8.0, *r.ProblemGrades[0].Score)
			require.NotNil(t, r.ProblemGrades[0].SubmittedAt)
			assert.True(t, r.ProblemGrades[0].IsOnTime)
		})
	}
}

func TestNormalizeRows_UnknownShapesGiveEmpty(t *testing.T) {
	for _, payload := range []string{``, `null`, `42`, `"x"`, `{"rows":[]}`, `{"data":{"a":1}}`, `{broken`} {
		rows := gradebook.NormalizeRows([]byte(payload))
		assert.NotNil(t, rows, payload)
		assert.Empty(t, rows, payload)
	}
}

func TestNormalizeRows_NullScoreStaysUngraded(t *testing.T) {
	payload := `[{"userId":1,"problemGrades":[{"problemId":1,"score":null},{"problemId":2},{"problemId":3,"score":0}]}]`
	rows := gradebook.NormalizeRows([]byte(payload))
	require.Len(t, rows, 1)
	g := rows[0].ProblemGrades
	require.Len(t, g, 3)
	assert.Nil(t, g[0].Score)
	assert.Nil(t, g[1].Score)
	require.NotNil(t, g[2].Score)
	assert.Equal(t, 0.0, *g[2].Score)
}

func TestNormalizeRows_MissingProblemGradesAndNumericStudentID(t *testing.T) {
	rows := gradebook.NormalizeRows([]byte(`{"data":[{"userId":3,"studentId":2024017,"studentName":"Lee"}]}`))
	require.Len(t, rows, 1)
	assert.Equal(t, "2024017", rows[0].StudentID)
	assert.NotNil(t, rows[0].ProblemGrades)
	assert.Empty(t, rows[0].ProblemGrades)
}

func TestNormalizeRows_SkipsUnreadableElements(t *testing.T) {
	rows := gradebook.NormalizeRows([]byte(`[{"userId":"not-a-number"},{"userId":2}]`))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].UserID)
}

func TestParseKind(t *testing.T) {
	k, err := gradebook.ParseKind("assignments")
	require.NoError(t, err)
	assert.Equal(t, gradebook.KindAssignment, k)

	k, err = gradebook.ParseKind("Quiz")
	require.NoError(t, err)
	assert.Equal(t, gradebook.KindQuiz, k)

	_, err = gradebook.ParseKind("exam")
	assert.ErrorIs(t, err, gradebook.ErrUnknownKind)
}
