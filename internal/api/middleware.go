package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/atlasstudy/atlas/internal/logger"
)

// exposeRequestID returns the id assigned by middleware.RequestID in the
// response headers.
func exposeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog logs one line per request through middleware.RequestLogger.
// middleware.Recoverer reports panics through the same entry.
func accessLog(log *logger.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(logFormatter{log: log})
}

type logFormatter struct {
	log *logger.Logger
}

func (f logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{log: f.log.With(
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)}
}

type logEntry struct {
	log *logger.Logger
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	e.log.Info("http request",
		"status", status,
		"bytes", bytes,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func (e *logEntry) Panic(v any, stack []byte) {
	e.log.Error("panic recovered", "panic", v, "stack", string(stack))
}
