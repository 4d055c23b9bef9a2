package gradebook

import (
	"context"
	"errors"
	"fmt"
)

// BeginEdit opens an editor on a score cell, seeded with the cell's current
// score from a fresh fetch (empty when ungraded). Only assignment scores are
// editable, and the student and problem must be on the assignment.
func (s *Service) BeginEdit(ctx context.Context, key CellKey) (EditState, error) {
	if key.Kind != KindAssignment {
		return EditState{}, ErrReadOnlyKind
	}
	if st, ok := s.edits.Get(key); ok {
		return st, nil
	}
	v, err := s.AssessmentGrades(ctx, key.SectionID, key.Kind, key.AssessmentID)
	if err != nil {
		return EditState{}, err
	}
	if !hasProblem(v.Item.Problems, key.ProblemID) {
		return EditState{}, fmt.Errorf("%w: problem %d not in assignment %d", ErrNoData, key.ProblemID, key.AssessmentID)
	}
	for _, r := range v.Rows {
		if r.UserID != key.UserID {
			continue
		}
		g, _ := r.Grade(key.ProblemID)
		return s.edits.Begin(key, g.Score), nil
	}
	return EditState{}, fmt.Errorf("%w: student %d not in assignment %d", ErrNoData, key.UserID, key.AssessmentID)
}

// SaveEdit writes one edited score and returns the refetched assessment. On
// any failure the edit stays open so the value can be retried as is.
func (s *Service) SaveEdit(ctx context.Context, key CellKey, comment string) (AssessmentView, error) {
	st, ok := s.edits.Get(key)
	if !ok {
		return AssessmentView{}, ErrNoSession
	}
	if st.Value == nil {
		return AssessmentView{}, ErrEmptyScore
	}
	points, err := s.problemPoints(ctx, key.SectionID, key.AssessmentID)
	if err != nil {
		return AssessmentView{}, err
	}
	in, err := s.gradeInput(st, comment, points)
	if err != nil {
		return AssessmentView{}, err
	}
	if err := s.src.SaveGrade(ctx, key.SectionID, key.AssessmentID, in); err != nil {
		s.log.Warn("grade save failed", "section_id", key.SectionID, "assessment_id", key.AssessmentID,
			"user_id", key.UserID, "problem_id", key.ProblemID, "error", err)
		return AssessmentView{}, fmt.Errorf("save grade: %w", err)
	}
	s.edits.clear(key)
	s.invalidate(ctx, key.SectionID, key.Kind, key.AssessmentID)
	s.record(ctx, EventGradeSaved, cellKeyString(key), in)
	return s.AssessmentGrades(ctx, key.SectionID, key.Kind, key.AssessmentID)
}

// SaveAllEdits writes every open edit of the section, one saveBulkGrades call
// per assignment, in order. A failing assignment keeps its edits open and is
// counted; edits without a value stay open and are not sent. Batches are all
// or nothing: one invalid score (negative, above the problem's points, or on
// a problem the assignment lacks) fails its whole assignment, and the valid
// edits in it stay open unsent.
func (s *Service) SaveAllEdits(ctx context.Context, sectionID int64) (BulkResult, error) {
	open := s.edits.Open(sectionID)
	if len(open) == 0 {
		return BulkResult{}, ErrNoSession
	}

	type batch struct {
		assessmentID int64
		keys         []CellKey
		grades       []GradeInput
		points       map[int64]float64
		invalid      error
	}
	var batches []*batch
	byID := map[int64]*batch{}
	for _, st := range open {
		if st.Key.Kind != KindAssignment || st.Value == nil {
			continue
		}
		b, ok := byID[st.Key.AssessmentID]
		if !ok {
			b = &batch{assessmentID: st.Key.AssessmentID}
			b.points, b.invalid = s.problemPoints(ctx, sectionID, b.assessmentID)
			byID[st.Key.AssessmentID] = b
			batches = append(batches, b)
		}
		if b.points == nil {
			continue
		}
		in, err := s.gradeInput(st, "", b.points)
		if err != nil {
			b.invalid = errors.Join(b.invalid, err)
			continue
		}
		b.keys = append(b.keys, st.Key)
		b.grades = append(b.grades, in)
	}

	var res BulkResult
	for _, b := range batches {
		if b.invalid != nil {
			res.Failed++
			s.log.Warn("bulk grade batch rejected", "section_id", sectionID, "assessment_id", b.assessmentID, "error", b.invalid)
			continue
		}
		if err := s.src.SaveBulkGrades(ctx, sectionID, b.assessmentID, b.grades); err != nil {
			res.Failed++
			s.log.Warn("bulk grade save failed", "section_id", sectionID, "assessment_id", b.assessmentID, "error", err)
			continue
		}
		res.Saved++
		for _, k := range b.keys {
			s.edits.clear(k)
		}
		s.invalidate(ctx, sectionID, KindAssignment, b.assessmentID)
		s.record(ctx, EventGradesBulkSaved, pointsKey(sectionID, b.assessmentID), b.grades)

		v, err := s.AssessmentGrades(ctx, sectionID, KindAssignment, b.assessmentID)
		if err != nil {
			s.log.Warn("refresh after bulk save failed", "section_id", sectionID, "assessment_id", b.assessmentID, "error", err)
			continue
		}
		res.Refreshed = append(res.Refreshed, v)
	}
	s.log.Info("bulk grades saved", "section_id", sectionID, "result", res.String())
	return res, nil
}

// problemPoints loads an assignment's defaulted point weights by problem id.
func (s *Service) problemPoints(ctx context.Context, sectionID, assignmentID int64) (map[int64]float64, error) {
	problems, err := s.src.AssignmentProblems(ctx, sectionID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("load problems: %w", err)
	}
	out := make(map[int64]float64, len(problems))
	for _, p := range NormalizeProblems(problems) {
		out[p.ProblemID] = p.Points
	}
	return out, nil
}

// gradeInput checks an edit against 0 <= score <= points.
func (s *Service) gradeInput(st EditState, comment string, points map[int64]float64) (GradeInput, error) {
	if st.Value == nil {
		return GradeInput{}, ErrEmptyScore
	}
	in := GradeInput{
		UserID:    st.Key.UserID,
		ProblemID: st.Key.ProblemID,
		Score:     *st.Value,
		Comment:   comment,
	}
	if err := s.validate.Struct(in); err != nil {
		return GradeInput{}, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	limit, ok := points[in.ProblemID]
	if !ok {
		return GradeInput{}, fmt.Errorf("%w: problem %d not in assignment %d", ErrNoData, in.ProblemID, st.Key.AssessmentID)
	}
	if in.Score > limit {
		return GradeInput{}, fmt.Errorf("%w: score %g exceeds %g points", ErrInvalidScore, in.Score, limit)
	}
	return in, nil
}

func hasProblem(problems []ProblemSpec, id int64) bool {
	for _, p := range problems {
		if p.ProblemID == id {
			return true
		}
	}
	return false
}

func cellKeyString(k CellKey) string {
	return fmt.Sprintf("%d/%s/%d/%d/%d", k.SectionID, k.Kind, k.AssessmentID, k.UserID, k.ProblemID)
}
