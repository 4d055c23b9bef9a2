package http

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-gradebook/internal/export"
	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
)

// GET /sections/{sid}/{kind}/{id}/export.csv?q=
func ExportAssessmentHandler(svc *gradebook.Service, archive *export.Archive, log *logger.Logger, now func() time.Time) http.HandlerFunc {
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
		rows := gradebook.FilterRows(v.Rows, strings.TrimSpace(r.URL.Query().Get("q")))
		var buf bytes.Buffer
		if err := export.AssessmentCSV(&buf, v.Item, rows); err != nil {
			writeError(w, log, r, err)
			return
		}
		sendCSV(w, r, archive, log, export.FileName(v.Item.Title, now()), buf.Bytes())
	}
}

// GET /sections/{sid}/gradebook/export.csv?q=
func ExportCourseHandler(svc *gradebook.Service, archive *export.Archive, log *logger.Logger, now func() time.Time) http.HandlerFunc {
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
		students := gradebook.FilterEntries(roster.Students, strings.TrimSpace(r.URL.Query().Get("q")))
		var buf bytes.Buffer
		if err := export.CourseCSV(&buf, roster.Items, students); err != nil {
			writeError(w, log, r, err)
			return
		}
		sendCSV(w, r, archive, log, export.FileName(fmt.Sprintf("section-%d", sid), now()), buf.Bytes())
	}
}

// sendCSV archives the file when an archive is configured; a failed archive
// write does not block the download.
func sendCSV(w http.ResponseWriter, r *http.Request, archive *export.Archive, log *logger.Logger, name string, data []byte) {
	if key, err := archive.Save(name, data); err != nil {
		log.Warn("export archive failed", "file", name, "error", err)
	} else if key != "" {
		log.Info("export archived", "key", key, "bytes", len(data))
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}
