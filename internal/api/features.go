package api

import (
	"encoding/json"
	"net/http"

	"github.com/atlasstudy/atlas/internal/prompt"
	"github.com/atlasstudy/atlas/internal/study"
)

// FeatureRequest is the body of every document feature route.
type FeatureRequest struct {
	Content string `json:"content"`
	FileURL string `json:"fileUrl"`
	Count   int    `json:"count"`
}

type ChatRequest struct {
	Context  string           `json:"context"`
	FileURL  string           `json:"fileUrl"`
	Question string           `json:"question"`
	History  []prompt.Message `json:"history"`
}

func handleFeature(deps Deps, f prompt.Feature) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req FeatureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		out, err := deps.Study.Run(r.Context(), identity(r), study.Request{
			Feature: f,
			Content: req.Content,
			FileURL: req.FileURL,
			Count:   req.Count,
		})
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}

		body, err := withSessionID(out)
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// withSessionID flattens the feature result and adds session_id when the
// session was recorded.
func withSessionID(out study.Outcome) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(out.Result)
	if err != nil {
		return nil, err
	}
	body := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, err
	}
	if out.SessionID != "" {
		id, err := json.Marshal(out.SessionID)
		if err != nil {
			return nil, err
		}
		body["session_id"] = id
	}
	return body, nil
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		answer, err := deps.Study.Chat(r.Context(), study.ChatRequest{
			Question: req.Question,
			Context:  req.Context,
			FileURL:  req.FileURL,
			History:  req.History,
		})
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
	}
}
