package shared

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader is the request header carrying the caller's API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuthenticator validates API keys against a bcrypt hash from
// configuration and attaches a principal to the request context.
type APIKeyAuthenticator struct {
	hash      []byte
	principal string
	logger    *slog.Logger
}

// NewAPIKeyAuthenticator builds an authenticator. An empty hash disables
// authentication, which is only acceptable in development.
func NewAPIKeyAuthenticator(hash, principal string, logger *slog.Logger) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{hash: []byte(hash), principal: principal, logger: logger}
}

// Middleware rejects requests without a valid API key.
func (a *APIKeyAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.hash) == 0 {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), &Principal{Name: "anonymous"})))
			return
		}
		key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
		if key == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(key)); err != nil {
			if a.logger != nil {
				a.logger.Warn("api key rejected", slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		ctx := ContextWithPrincipal(r.Context(), &Principal{Name: a.principal})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
