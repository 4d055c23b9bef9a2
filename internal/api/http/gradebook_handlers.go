package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
)

type itemRef struct {
	section int64
	kind    gradebook.Kind
	id      int64
}

// parseItem reads {sid}, {kind} and {id}; it writes the 400 itself.
func parseItem(w http.ResponseWriter, r *http.Request) (itemRef, bool) {
	sid, ok1 := int64Param(r, "sid")
	id, ok2 := int64Param(r, "id")
	if !ok1 || !ok2 {
		http.Error(w, "section and item id required", http.StatusBadRequest)
		return itemRef{}, false
	}
	kind, err := gradebook.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return itemRef{}, false
	}
	return itemRef{section: sid, kind: kind, id: id}, true
}

// GET /sections/{sid}/{kind}/{id}/grades?q=
func AssessmentGradesHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := parseItem(w, r)
		if !ok {
			return
		}
		v, err := svc.AssessmentGrades(r.Context(), ref.section, ref.kind, ref.id)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		v.Rows = gradebook.FilterRows(v.Rows, strings.TrimSpace(r.URL.Query().Get("q")))
		writeJSON(w, http.StatusOK, v)
	}
}

// GET /sections/{sid}/{kind}/{id}/stats
func AssessmentStatsHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := parseItem(w, r)
		if !ok {
			return
		}
		st, err := svc.AssessmentStats(r.Context(), ref.section, ref.kind, ref.id)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// GET /sections/{sid}/gradebook?q=
func CourseGradebookHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := int64Param(r, "sid")
		if !ok {
			http.Error(w, "section id required", http.StatusBadRequest)
			return
		}
		roster, err := svc.CourseGradebook(r.Context(), sid)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		roster.Students = gradebook.FilterEntries(roster.Students, strings.TrimSpace(r.URL.Query().Get("q")))
		writeJSON(w, http.StatusOK, roster)
	}
}

// GET /sections/{sid}/assignments/{id}/students/{uid}/problems/{pid}/code
func AcceptedCodeHandler(svc *gradebook.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok1 := int64Param(r, "sid")
		aid, ok2 := int64Param(r, "id")
		uid, ok3 := int64Param(r, "uid")
		pid, ok4 := int64Param(r, "pid")
		if !ok1 || !ok2 || !ok3 || !ok4 {
			http.Error(w, "section, assignment, user and problem id required", http.StatusBadRequest)
			return
		}
		code, err := svc.AcceptedCode(r.Context(), sid, aid, uid, pid)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"code": code})
	}
}
