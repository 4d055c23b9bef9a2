package gradebook

type ProblemStats struct {
	ProblemID      int64   `json:"problemId"`
	Avg            float64 `json:"avg"`
	Max            float64 `json:"max"`
	Min            float64 `json:"min"`
	SubmittedCount int     `json:"submittedCount"`
	TotalCount     int     `json:"totalCount"`
}

type OverallStats struct {
	Avg           float64 `json:"avg"`
	Max           float64 `json:"max"`
	Min           float64 `json:"min"`
	TotalPoints   float64 `json:"totalPoints"`
	TotalStudents int     `json:"totalStudents"`
}

type Stats struct {
	Problems []ProblemStats `json:"problems"`
	Overall  OverallStats   `json:"overall"`
}

// ComputeStats derives per-problem and overall statistics for one item.
// The first row's problems are the schema. Ungraded scores are left out of
// avg/max/min but every student counts toward TotalCount. It reports false
// for an empty roster.
func ComputeStats(rows []StudentGradeRow) (Stats, bool) {
	if len(rows) == 0 {
		return Stats{}, false
	}
	st := Stats{Problems: make([]ProblemStats, 0, len(rows[0].ProblemGrades))}
	for _, ref := range rows[0].ProblemGrades {
		ps := ProblemStats{ProblemID: ref.ProblemID, TotalCount: len(rows)}
		var present []float64
		for _, r := range rows {
			g, ok := r.Grade(ref.ProblemID)
			if !ok {
				continue
			}
			if g.Submitted {
				ps.SubmittedCount++
			}
			if g.Score != nil {
				present = append(present, *g.Score)
			}
		}
		ps.Avg, ps.Max, ps.Min = describe(present)
		st.Problems = append(st.Problems, ps)
	}

	totals := make([]float64, len(rows))
	for i, r := range rows {
		totals[i] = r.TotalScore
	}
	st.Overall.Avg, st.Overall.Max, st.Overall.Min = describe(totals)
	st.Overall.TotalPoints = rows[0].TotalPoints
	st.Overall.TotalStudents = len(rows)
	return st, true
}

// describe returns mean, max and min, all zero for an empty set.
func describe(vals []float64) (avg, maxV, minV float64) {
	if len(vals) == 0 {
		return 0, 0, 0
	}
	maxV, minV = vals[0], vals[0]
	sum := 0.0
	for _, v := range vals {
		sum += v
		maxV = max(maxV, v)
		minV = min(minV, v)
	}
	return sum / float64(len(vals)), maxV, minV
}
