package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/AnshRaj112/kokoro-journal/internal/services"
	"go.uber.org/zap"
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "session"

type contextKey struct{}

var identityKey = contextKey{}

// IdentityLookup resolves a session token.
type IdentityLookup interface {
	Current(ctx context.Context, token string) (*models.Identity, error)
}

// TokenFromRequest returns the session token from the Authorization
// header, the session cookie or the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity stored by RequireIdentity, or nil.
func IdentityFrom(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey).(*models.Identity)
	return identity
}

// RequireIdentity rejects API requests without a valid session with 401.
func RequireIdentity(lookup IdentityLookup, log *zap.Logger) func(http.Handler) http.Handler {
	return requireIdentity(lookup, log, func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusUnauthorized, "Authentication required")
	})
}

// RequirePageIdentity redirects page requests without a valid session to /login.
func RequirePageIdentity(lookup IdentityLookup, log *zap.Logger) func(http.Handler) http.Handler {
	return requireIdentity(lookup, log, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

func requireIdentity(lookup IdentityLookup, log *zap.Logger, deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				deny(w, r)
				return
			}
			identity, err := lookup.Current(r.Context(), token)
			if err != nil {
				if !errors.Is(err, services.ErrSessionNotFound) {
					log.Error("session lookup failed", zap.Error(err))
				}
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
