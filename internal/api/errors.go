package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/atlasstudy/atlas/internal/completion"
	"github.com/atlasstudy/atlas/internal/extract"
	"github.com/atlasstudy/atlas/internal/logger"
	"github.com/atlasstudy/atlas/internal/resolve"
	"github.com/atlasstudy/atlas/internal/storage"
	"github.com/atlasstudy/atlas/internal/study"
)

const internalErrorMessage = "Internal server error"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// statusFor maps pipeline errors to HTTP status codes. Input problems are the
// caller's to fix; completion problems are an upstream failure.
func statusFor(err error) int {
	var (
		rerr *resolve.Error
		xerr *extract.Error
		cerr *completion.Error
	)
	switch {
	case errors.As(err, &rerr), errors.As(err, &xerr), errors.Is(err, study.ErrNoQuestion):
		return http.StatusBadRequest
	case errors.As(err, &cerr), errors.Is(err, completion.ErrMissingAPIKey):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with its mapped status. Messages of unclassified
// errors are logged, not returned.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		httpError(w, code, internalErrorMessage)
		return
	}
	httpError(w, code, "%s", err.Error())
}
