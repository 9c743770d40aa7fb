// Package api is the HTTP boundary of Atlas: the study feature routes, file
// uploads, session history and the dashboard, plus the MCP tool surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atlasstudy/atlas/internal/auth"
	"github.com/atlasstudy/atlas/internal/logger"
	"github.com/atlasstudy/atlas/internal/objectstore"
	"github.com/atlasstudy/atlas/internal/prompt"
	"github.com/atlasstudy/atlas/internal/storage"
	"github.com/atlasstudy/atlas/internal/study"
)

const maxRequestBodySize = 2 << 20 // 2MB

type Deps struct {
	Study    *study.Service
	Store    *storage.Store
	Objects  objectstore.Store
	Verifier *auth.Verifier
	Log      *logger.Logger
	// Now is the clock used for dashboard windows; defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// NewHandler returns the Atlas HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(exposeRequestID)
	r.Use(accessLog(deps.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(deps))
	r.Get("/storage/v1/object/public/{bucket}/*", handlePublicObject(deps))

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireUser(deps.Verifier))

		r.Route("/ai", func(r chi.Router) {
			r.Post("/summarize", handleFeature(deps, prompt.Summary))
			r.Post("/quiz", handleFeature(deps, prompt.Quiz))
			r.Post("/flashcards", handleFeature(deps, prompt.Flashcards))
			r.Post("/study-plan", handleFeature(deps, prompt.StudyPlan))
			r.Post("/exam-analysis", handleFeature(deps, prompt.TopicAnalysis))
			r.Post("/revision", handleFeature(deps, prompt.Revision))
			r.Post("/chat", handleChat(deps))
		})

		r.Post("/uploads", handleCreateUpload(deps))
		r.Get("/uploads", handleListUploads(deps))
		r.Delete("/uploads", handleDeleteUpload(deps))
		r.Delete("/uploads/{id}", handleDeleteUpload(deps))

		r.Get("/sessions", handleListSessions(deps))
		r.Get("/sessions/{id}", handleGetSession(deps))
		r.Delete("/sessions/{id}", handleDeleteSession(deps))
		r.Patch("/session-duration", handleSessionDuration(deps))
		r.Post("/quiz-history", handleQuizHistory(deps))
		r.Get("/quiz-history", handleListQuizHistory(deps))

		r.Get("/dashboard", handleDashboard(deps))
	})

	return r
}

// handleHealth reports "ok" with the database schema version, or 503 when
// the database cannot be reached.
func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if deps.Store != nil {
			versions, err := deps.Store.AppliedMigrations(r.Context())
			if err != nil {
				deps.Log.Warn("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
			if n := len(versions); n > 0 {
				body["schema_version"] = versions[n-1]
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}
