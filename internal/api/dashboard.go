package api

import (
	"net/http"

	"github.com/atlasstudy/atlas/internal/analytics"
)

func handleDashboard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := analytics.BuildDashboard(r.Context(), deps.Store, identity(r).UserID, deps.now())
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
