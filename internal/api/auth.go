package api

import (
	"net/http"

	"github.com/atlasstudy/atlas/internal/auth"
)

// RequireUser rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func RequireUser(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				httpError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// identity returns the caller set by RequireUser.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
