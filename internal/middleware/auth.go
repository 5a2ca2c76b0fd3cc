package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/atelierhq/atelier/internal/domain/user"
)

type authUserCtxKey struct{}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// Authenticator resolves an API key to its owner.
type Authenticator interface {
	ValidateAPIKey(ctx context.Context, key string) (*user.User, error)
}

// anonymousID is the caller injected when authentication is disabled.
const anonymousID = "00000000-0000-0000-0000-000000000001"

// Auth returns middleware that validates API-key credentials from the
// X-API-Key header or an Authorization bearer token. When authEnabled is
// false, a default local user is injected instead.
func Auth(authSvc Authenticator, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				local := &user.User{ID: anonymousID, Email: "local@localhost", Name: "Local"}
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), local)))
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			// WebSocket clients cannot set headers; allow ?api_key= there.
			if key == "" && r.URL.Path == "/ws" {
				key = r.URL.Query().Get("api_key")
			}
			if key == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}

			u, err := authSvc.ValidateAPIKey(r.Context(), key)
			if err != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
		})
	}
}

func withUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, authUserCtxKey{}, u)
}

// UserFromContext returns the authenticated caller, or nil.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}

// UserID returns the authenticated caller's ID, or "".
func UserID(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}
