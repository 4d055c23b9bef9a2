package gradebook_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

func TestComputeStats_ExcludesUngraded(t *testing.T) {
	rows := []gradebook.StudentGradeRow{
		row(1, "A", "1", 5, 10, graded(1, 5)),
		row(2, "B", "2", 0, 10, ungraded(1)),
		row(3, "C", "3", 7, 10, graded(1, 7)),
	}
	st, ok := gradebook.ComputeStats(rows)
	require.True(t, ok)
	require.Len(t, st.Problems, 1)

	p := st.Problems[0]
	assert.Equal(t, 6.0, p.Avg)
	assert.Equal(t, 7.0, p.Max)
	assert.Equal(t, 5.0, p.Min)
	assert.Equal(t, 3, p.TotalCount)
	assert.Equal(t, 2, p.SubmittedCount)

	assert.Equal(t, 4.0, st.Overall.Avg)
	assert.Equal(t, 7.0, st.Overall.Max)
	assert.Equal(t, 0.0, st.Overall.Min)
	assert.Equal(t, 10.0, st.Overall.TotalPoints)
	assert.Equal(t, 3, st.Overall.TotalStudents)
}

func TestComputeStats_NoPresentScores(t *testing.T) {
	st, ok := gradebook.ComputeStats([]gradebook.StudentGradeRow{
		row(1, "A", "1", 0, 3, ungraded(4)),
		row(2, "B", "2", 0, 3, ungraded(4)),
	})
	require.True(t, ok)
	assert.Equal(t, gradebook.ProblemStats{ProblemID: 4, TotalCount: 2}, st.Problems[0])
}

func TestComputeStats_EmptyRoster(t *testing.T) {
	_, ok := gradebook.ComputeStats(nil)
	assert.False(t, ok)
}

func TestComputeStats_MatchesByProblemID(t *testing.T) {
	st, ok := gradebook.ComputeStats([]gradebook.StudentGradeRow{
		row(1, "A", "1", 3, 4, graded(1, 1), graded(2, 2)),
		row(2, "B", "2", 4, 4, graded(2, 4), graded(1, 3)),
	})
	require.True(t, ok)
	assert.Equal(t, 2.0, st.Problems[0].Avg)
	assert.Equal(t, 3.0, st.Problems[1].Avg)
}
