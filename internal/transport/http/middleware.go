package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireBearer guards a route group with a static bearer token.
func RequireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			auth := r.Header.Get("Authorization")
			if token == "" || !strings.HasPrefix(auth, prefix) ||
				subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized access"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
