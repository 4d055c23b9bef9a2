package http

import (
	"encoding/json"
	"net/http"

	authmw "github.com/mind-engage/mindengage-gradebook/internal/auth/middleware"
	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
)

type pointsReq struct {
	Points map[int64]float64 `json:"points"` // problemId -> points
}

type coursePointsReq struct {
	Assignments map[int64]map[int64]float64 `json:"assignments"` // assignmentId -> problemId -> points
}

// PUT /sections/{sid}/assignments/{id}/points  {"points": {"<problemId>": 5}}
func SaveAssignmentPointsHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok1 := int64Param(r, "sid")
		aid, ok2 := int64Param(r, "id")
		if !ok1 || !ok2 {
			http.Error(w, "section and assignment id required", http.StatusBadRequest)
			return
		}
		var req pointsReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		v, err := svc.SaveAssignmentPoints(r.Context(), sid, aid, req.Points)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		log.Info("points saved", "actor", authmw.SubjectFromContext(r.Context()), "section_id", sid, "assessment_id", aid)
		writeJSON(w, http.StatusOK, v)
	}
}

// PUT /sections/{sid}/points  {"assignments": {"<assignmentId>": {"<problemId>": 5}}}
func SaveCoursePointsHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := int64Param(r, "sid")
		if !ok {
			http.Error(w, "section id required", http.StatusBadRequest)
			return
		}
		var req coursePointsReq
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
				return
			}
		}
		res, err := svc.SaveCoursePoints(r.Context(), sid, req.Assignments)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bulkResp{BulkResult: res, Message: res.String()})
	}
}
