package gradebook

import (
	"math"
	"strconv"
)

// NoRatio is shown instead of a percentage when an item is worth zero points.
const NoRatio = "-"

// Ratio formats score/points as a percentage with one decimal.
func Ratio(score, points float64) string {
	if points <= 0 || math.IsNaN(points) {
		return NoRatio
	}
	return strconv.FormatFloat(score/points*100, 'f', 1, 64)
}

func positive(v float64) bool { return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) }

// DefaultPoints maps an absent or non-positive weight to 1.
func DefaultPoints(p float64) float64 {
	if positive(p) {
		return p
	}
	return 1
}

// ResolvePoints picks a problem's weight: the explicit input when positive,
// then the persisted value when positive, then 1. A zero weight never comes out.
func ResolvePoints(input, persisted *float64) float64 {
	if input != nil && positive(*input) {
		return *input
	}
	if persisted != nil && positive(*persisted) {
		return *persisted
	}
	return 1
}

// ResolveWeights applies ResolvePoints to every problem of an item.
// Input entries for problems the item does not have are ignored.
func ResolveWeights(problems []ProblemSpec, input map[int64]float64) map[int64]float64 {
	out := make(map[int64]float64, len(problems))
	for _, p := range problems {
		persisted := p.Points
		var in *float64
		if v, ok := input[p.ProblemID]; ok {
			in = &v
		}
		out[p.ProblemID] = ResolvePoints(in, &persisted)
	}
	return out
}

// NormalizeProblems returns a copy with every weight defaulted.
func NormalizeProblems(problems []ProblemSpec) []ProblemSpec {
	out := make([]ProblemSpec, len(problems))
	for i, p := range problems {
		p.Points = DefaultPoints(p.Points)
		out[i] = p
	}
	return out
}

func sumPoints(problems []ProblemSpec) float64 {
	total := 0.0
	for _, p := range problems {
		total += p.Points
	}
	return total
}

// NormalizeItem defaults the item's weights and recomputes TotalPoints from them.
func NormalizeItem(it AssessmentItem, kind Kind) AssessmentItem {
	if it.Type == "" {
		it.Type = kind
	}
	it.Problems = NormalizeProblems(it.Problems)
	it.TotalPoints = sumPoints(it.Problems)
	return it
}
