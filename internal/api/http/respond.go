package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
	"github.com/mind-engage/mindengage-gradebook/internal/source/httpsource"
	"github.com/mind-engage/mindengage-gradebook/internal/source/sqlsource"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps gradebook and source errors to HTTP status codes.
func statusFor(err error) int {
	var se *httpsource.StatusError
	switch {
	case errors.Is(err, gradebook.ErrNoData),
		errors.Is(err, gradebook.ErrNoSession),
		errors.Is(err, sqlsource.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gradebook.ErrEmptyScore),
		errors.Is(err, gradebook.ErrInvalidScore),
		errors.Is(err, gradebook.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, gradebook.ErrReadOnlyKind):
		return http.StatusConflict
	case errors.As(err, &se):
		if se.Code == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, httpsource.ErrWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), code)
}

func int64Param(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return v, err == nil && v > 0
}
