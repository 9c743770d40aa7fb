package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlasstudy/atlas/internal/prompt"
	"github.com/atlasstudy/atlas/internal/storage"
)

const maxSessionMinutes = 1440

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := storage.SessionFilter{
			Limit:  parseIntParam(r, "limit", 20, 100),
			Offset: parseIntParam(r, "offset", 0, 0),
		}
		if t := r.URL.Query().Get("type"); t != "" {
			f, err := prompt.ParseFeature(t)
			if err != nil || f == prompt.Chat {
				httpError(w, http.StatusBadRequest, "unknown session type %q", t)
				return
			}
			filter.ContentType = string(f)
		}

		sessions, err := deps.Store.ListSessions(r.Context(), identity(r).UserID, filter)
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}
		if sessions == nil {
			sessions = []storage.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Store.GetSession(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Session not found.")
			return
		}
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteSession(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Session not found.")
			return
		}
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type sessionDurationRequest struct {
	SessionID       string   `json:"session_id"`
	DurationMinutes *float64 `json:"duration_minutes"`
}

func handleSessionDuration(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req sessionDurationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.SessionID == "" || req.DurationMinutes == nil {
			httpError(w, http.StatusBadRequest, "session_id and duration_minutes are required.")
			return
		}
		minutes := *req.DurationMinutes
		if minutes < 0 || minutes > maxSessionMinutes {
			httpError(w, http.StatusBadRequest, "duration_minutes must be between 0 and 1440.")
			return
		}

		err := deps.Store.UpdateSessionDuration(r.Context(), identity(r).UserID, req.SessionID, int(math.Round(minutes)))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Session not found.")
			return
		}
		if err != nil {
			deps.Log.Error("updating session duration failed", "session", req.SessionID, "error", err)
			httpError(w, http.StatusInternalServerError, "Failed to update session duration.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type quizHistoryRequest struct {
	SessionID      string `json:"session_id"`
	Score          *int   `json:"score"`
	TotalQuestions *int   `json:"total_questions"`
}

func handleQuizHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req quizHistoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Score == nil || req.TotalQuestions == nil {
			httpError(w, http.StatusBadRequest, "score and total_questions are required numbers.")
			return
		}
		score, total := *req.Score, *req.TotalQuestions
		if score < 0 || total <= 0 || score > total {
			httpError(w, http.StatusBadRequest, "Invalid score or total_questions values.")
			return
		}

		user := identity(r)
		if req.SessionID != "" {
			if _, err := deps.Store.GetSession(r.Context(), user.UserID, req.SessionID); errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "Session not found.")
				return
			} else if err != nil {
				writeError(w, deps.Log, err)
				return
			}
		}

		if err := deps.Store.UpsertUser(r.Context(), storage.User{ID: user.UserID, Email: user.Email}); err != nil {
			writeError(w, deps.Log, err)
			return
		}
		res, err := deps.Store.CreateQuizResult(r.Context(), storage.QuizResult{
			UserID:         user.UserID,
			SessionID:      req.SessionID,
			Score:          score,
			TotalQuestions: total,
		})
		if err != nil {
			deps.Log.Error("saving quiz result failed", "error", err)
			httpError(w, http.StatusInternalServerError, "Failed to save quiz result.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": res.ID})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func handleListQuizHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := deps.Store.ListQuizResults(r.Context(), identity(r).UserID, parseIntParam(r, "limit", 20, 100))
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}
