package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/navikt/meetrooms/internal/utils"
)

// Middleware provides bearer token authentication for API routes
type Middleware struct {
	verifier *Verifier
	log      *slog.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(verifier *Verifier, log *slog.Logger) *Middleware {
	return &Middleware{verifier: verifier, log: log}
}

// RequireAuth is a middleware that validates Bearer tokens and stores the
// identity in the request context
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			http.Error(w, "Bearer token required", http.StatusUnauthorized)
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			m.log.Info("Rejected bearer token",
				"path", utils.SanitizeLogString(r.URL.Path),
				"error", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// bearerToken extracts the token from the Authorization header. EventSource
// clients cannot set headers, so an access_token query parameter is accepted
// as a fallback.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		return token, token != ""
	}
	token := r.URL.Query().Get("access_token")
	return token, token != ""
}
