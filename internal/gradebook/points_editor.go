package gradebook

import (
	"context"
	"fmt"
	"strconv"
)

// BulkResult reports a bulk write that tolerates per-item failures.
type BulkResult struct {
	Saved     int              `json:"saved"`
	Failed    int              `json:"failed"`
	Refreshed []AssessmentView `json:"refreshed,omitempty"`
}

func (r BulkResult) String() string {
	return fmt.Sprintf("%d items saved, %d failed", r.Saved, r.Failed)
}

// SaveAssignmentPoints writes one assignment's point weights and returns the
// refetched view. Every problem gets a weight: the input when positive, else
// the persisted weight when positive, else 1.
func (s *Service) SaveAssignmentPoints(ctx context.Context, sectionID, assignmentID int64, input map[int64]float64) (AssessmentView, error) {
	problems, err := s.src.AssignmentProblems(ctx, sectionID, assignmentID)
	if err != nil {
		return AssessmentView{}, fmt.Errorf("load problems: %w", err)
	}
	if len(problems) == 0 {
		return AssessmentView{}, fmt.Errorf("%w: assignment %d has no problems", ErrNoData, assignmentID)
	}
	weights := ResolveWeights(problems, input)
	if err := s.src.SetBulkProblemPoints(ctx, sectionID, assignmentID, weights); err != nil {
		s.log.Warn("points save failed", "section_id", sectionID, "assessment_id", assignmentID, "error", err)
		return AssessmentView{}, fmt.Errorf("save points: %w", err)
	}
	s.invalidate(ctx, sectionID, KindAssignment, assignmentID)
	s.record(ctx, EventPointsSaved, pointsKey(sectionID, assignmentID), weights)
	return s.AssessmentGrades(ctx, sectionID, KindAssignment, assignmentID)
}

// SaveCoursePoints writes point weights for every assignment of the section
// that has problems. input maps assignment id to problem weights; missing
// entries fall back per problem like SaveAssignmentPoints. A failing item is
// counted and the rest are still attempted, one after another. Quiz weights
// are not bulk-editable.
func (s *Service) SaveCoursePoints(ctx context.Context, sectionID int64, input map[int64]map[int64]float64) (BulkResult, error) {
	items, err := s.items(ctx, sectionID, KindAssignment)
	if err != nil {
		s.log.Warn("assignment metadata fetch failed", "section_id", sectionID, "error", err)
		return BulkResult{}, fmt.Errorf("%w: %w", ErrNoData, err)
	}

	var res BulkResult
	for _, it := range items {
		if len(it.Problems) == 0 {
			it = s.withProblems(ctx, sectionID, it)
		}
		if len(it.Problems) == 0 {
			continue
		}
		weights := ResolveWeights(it.Problems, input[it.ID])
		if err := s.src.SetBulkProblemPoints(ctx, sectionID, it.ID, weights); err != nil {
			res.Failed++
			s.log.Warn("points save failed", "section_id", sectionID, "assessment_id", it.ID, "error", err)
			continue
		}
		res.Saved++
		s.invalidate(ctx, sectionID, KindAssignment, it.ID)
		s.record(ctx, EventPointsSaved, pointsKey(sectionID, it.ID), weights)

		it.Problems = withWeights(it.Problems, weights)
		it.TotalPoints = sumPoints(it.Problems)
		res.Refreshed = append(res.Refreshed, s.view(ctx, sectionID, it))
	}
	s.log.Info("course points saved", "section_id", sectionID, "result", res.String())
	return res, nil
}

func withWeights(problems []ProblemSpec, weights map[int64]float64) []ProblemSpec {
	out := make([]ProblemSpec, len(problems))
	for i, p := range problems {
		if w, ok := weights[p.ProblemID]; ok {
			p.Points = w
		}
		out[i] = p
	}
	return out
}

func pointsKey(sectionID, assignmentID int64) string {
	return strconv.FormatInt(sectionID, 10) + "/" + strconv.FormatInt(assignmentID, 10)
}
