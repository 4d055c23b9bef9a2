package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	authmw "github.com/mind-engage/mindengage-gradebook/internal/auth/middleware"
	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
)

var validate = validator.New()

type cellReq struct {
	Kind         string   `json:"kind"` // defaults to assignment
	AssessmentID int64    `json:"assessmentId" validate:"required,gt=0"`
	UserID       int64    `json:"userId" validate:"required,gt=0"`
	ProblemID    int64    `json:"problemId" validate:"required,gt=0"`
	Value        *float64 `json:"value,omitempty" validate:"omitempty,gte=0"`
	Comment      string   `json:"comment,omitempty" validate:"max=2000"`
}

// decodeCell reads the cell in the body and scopes it to {sid}.
func decodeCell(w http.ResponseWriter, r *http.Request) (gradebook.CellKey, cellReq, bool) {
	sid, ok := int64Param(r, "sid")
	if !ok {
		http.Error(w, "section id required", http.StatusBadRequest)
		return gradebook.CellKey{}, cellReq{}, false
	}
	var req cellReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return gradebook.CellKey{}, cellReq{}, false
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return gradebook.CellKey{}, cellReq{}, false
	}
	kind := gradebook.KindAssignment
	if req.Kind != "" {
		k, err := gradebook.ParseKind(req.Kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return gradebook.CellKey{}, cellReq{}, false
		}
		kind = k
	}
	return gradebook.CellKey{
		SectionID:    sid,
		Kind:         kind,
		AssessmentID: req.AssessmentID,
		UserID:       req.UserID,
		ProblemID:    req.ProblemID,
	}, req, true
}

// GET /sections/{sid}/edits
func ListEditsHandler(svc *gradebook.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := int64Param(r, "sid")
		if !ok {
			http.Error(w, "section id required", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, svc.Edits().Open(sid))
	}
}

// POST /sections/{sid}/edits  {assessmentId, userId, problemId, value}
// The edit is seeded with the stored score; value, when present, is applied
// on top of it.
func BeginEditHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, req, ok := decodeCell(w, r)
		if !ok {
			return
		}
		st, err := svc.BeginEdit(r.Context(), key)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		if req.Value != nil {
			if st, err = svc.Edits().Update(key, req.Value); err != nil {
				writeError(w, log, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// PATCH /sections/{sid}/edits  {assessmentId, userId, problemId, value}
func UpdateEditHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, req, ok := decodeCell(w, r)
		if !ok {
			return
		}
		st, err := svc.Edits().Update(key, req.Value)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// DELETE /sections/{sid}/edits  {assessmentId, userId, problemId}
func CancelEditHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, _, ok := decodeCell(w, r)
		if !ok {
			return
		}
		if err := svc.Edits().Cancel(key); err != nil {
			writeError(w, log, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /sections/{sid}/edits/save  {assessmentId, userId, problemId, comment}
func SaveEditHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, req, ok := decodeCell(w, r)
		if !ok {
			return
		}
		v, err := svc.SaveEdit(r.Context(), key, req.Comment)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		log.Info("grade saved", "actor", authmw.SubjectFromContext(r.Context()),
			"section_id", key.SectionID, "assessment_id", key.AssessmentID, "user_id", key.UserID, "problem_id", key.ProblemID)
		writeJSON(w, http.StatusOK, v)
	}
}

type bulkResp struct {
	gradebook.BulkResult
	Message string `json:"message"`
}

// POST /sections/{sid}/edits/save-all
func SaveAllEditsHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := int64Param(r, "sid")
		if !ok {
			http.Error(w, "section id required", http.StatusBadRequest)
			return
		}
		res, err := svc.SaveAllEdits(r.Context(), sid)
		if err != nil {
			if errors.Is(err, gradebook.ErrNoSession) {
				http.Error(w, "no open edits", http.StatusBadRequest)
				return
			}
			writeError(w, log, r, err)
			return
		}
		log.Info("grades bulk saved", "actor", authmw.SubjectFromContext(r.Context()), "section_id", sid, "result", res.String())
		writeJSON(w, http.StatusOK, bulkResp{BulkResult: res, Message: res.String()})
	}
}
