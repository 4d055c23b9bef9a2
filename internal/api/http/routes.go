package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-gradebook/internal/export"
	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
	"github.com/mind-engage/mindengage-gradebook/internal/rbac"
)

type Deps struct {
	Service *gradebook.Service
	Archive *export.Archive // optional
	Log     *logger.Logger
	Now     func() time.Time
}

// MountGradebook registers the gradebook routes on an authenticated router.
func MountGradebook(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	svc, log := d.Service, d.Log

	r.Route("/sections/{sid}", func(sr chi.Router) {
		sr.With(rbac.Require(rbac.PermGradebookView)).Get("/gradebook", CourseGradebookHandler(svc, log))
		sr.With(rbac.Require(rbac.PermGradebookExport)).Get("/gradebook/export.csv", ExportCourseHandler(svc, d.Archive, log, d.Now))

		sr.With(rbac.Require(rbac.PermGradebookView)).Get("/{kind}/{id}/grades", AssessmentGradesHandler(svc, log))
		sr.With(rbac.Require(rbac.PermGradebookView)).Get("/{kind}/{id}/stats", AssessmentStatsHandler(svc, log))
		sr.With(rbac.Require(rbac.PermGradebookExport)).Get("/{kind}/{id}/export.csv", ExportAssessmentHandler(svc, d.Archive, log, d.Now))

		sr.With(rbac.Require(rbac.PermPointsEdit)).Put("/assignments/{id}/points", SaveAssignmentPointsHandler(svc, log))
		sr.With(rbac.Require(rbac.PermPointsEdit)).Put("/points", SaveCoursePointsHandler(svc, log))

		sr.Route("/edits", func(er chi.Router) {
			er.Use(rbac.Require(rbac.PermScoresEdit))
			er.Get("/", ListEditsHandler(svc))
			er.Post("/", BeginEditHandler(svc, log))
			er.Patch("/", UpdateEditHandler(svc, log))
			er.Delete("/", CancelEditHandler(svc, log))
			er.Post("/save", SaveEditHandler(svc, log))
			er.Post("/save-all", SaveAllEditsHandler(svc, log))
		})

		sr.With(rbac.RequireAny(rbac.PermCodeView, rbac.PermScoresEdit)).
			Get("/assignments/{id}/students/{uid}/problems/{pid}/code", AcceptedCodeHandler(svc, log))
	})
}

// Probes.
func Healthz(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

// Readyz reports ready once ping succeeds.
func Readyz(ping func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if ping != nil {
			if err := ping(); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
