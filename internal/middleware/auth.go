package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"doclens/internal/auth"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const identityContextKey = contextKey("identity")

// IdentityFromContext returns the identity the auth middleware resolved.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*auth.Identity)
	return identity, ok
}

// Auth resolves the current user through the strategy chain (cookie
// first, bearer fallback) and embeds the identity into the request
// context. Unresolvable requests are rejected with a JSON 401 before the
// handler runs.
func Auth(chain *auth.Chain, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := chain.Resolve(r)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Request not authenticated")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated"})
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
