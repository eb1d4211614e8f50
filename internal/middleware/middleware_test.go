package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/AnshRaj112/kokoro-journal/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLookup map[string]*models.Identity

func (f fakeLookup) Current(ctx context.Context, token string) (*models.Identity, error) {
	if token == "broken" {
		return nil, errors.New("redis down")
	}
	identity, ok := f[token]
	if !ok {
		return nil, services.ErrSessionNotFound
	}
	return identity, nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if identity := IdentityFrom(r.Context()); identity != nil {
		_, _ = w.Write([]byte(identity.ID))
		return
	}
	_, _ = w.Write([]byte("anonymous"))
})

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?token=query", nil)
	assert.Equal(t, "query", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie"})
	assert.Equal(t, "cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", TokenFromRequest(r))

	empty := httptest.NewRequest(http.MethodGet, "/", nil)
	empty.Header.Set("Authorization", "Bearer ")
	assert.Empty(t, TokenFromRequest(empty))
}

func TestRequireIdentity(t *testing.T) {
	lookup := fakeLookup{"good": {ID: "u1"}}
	handler := RequireIdentity(lookup, zap.NewNop())(okHandler)

	tests := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{"valid", "good", http.StatusOK, "u1"},
		{"missing", "", http.StatusUnauthorized, `"success":false`},
		{"unknown", "nope", http.StatusUnauthorized, "Authentication required"},
		{"lookup error", "broken", http.StatusUnauthorized, "Authentication required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequirePageIdentityRedirects(t *testing.T) {
	handler := RequirePageIdentity(fakeLookup{"good": {ID: "u1"}}, zap.NewNop())(okHandler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good"})
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestHostCheck(t *testing.T) {
	handler := HostCheck("journal.example.com")(okHandler)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "Journal.Example.com:443"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r.Host = "evil.example.com"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	HostCheck("")(okHandler).ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	handler := LoginRateLimit(limited)(okHandler)

	post := func(path, ip string) int {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		r.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	for i := 0; i < loginRateLimitBurst; i++ {
		assert.Equal(t, http.StatusOK, post("/api/auth/signin", "192.0.2.10"))
	}
	assert.Equal(t, http.StatusTooManyRequests, post("/api/auth/signin", "192.0.2.10"))
	assert.Equal(t, http.StatusTooManyRequests, post("/login", "192.0.2.10"))

	// Other paths and other clients are unaffected.
	assert.Equal(t, http.StatusOK, post("/api/records", "192.0.2.10"))
	assert.Equal(t, http.StatusOK, post("/api/auth/signin", "192.0.2.11"))
}

func TestSubmitRateLimit(t *testing.T) {
	handler := SubmitRateLimit(okHandler)

	submit := func(userID string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/records", nil)
		r = r.WithContext(WithIdentity(r.Context(), &models.Identity{ID: userID}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < submitBurst; i++ {
		require.Equal(t, http.StatusOK, submit("limit-user").Code)
	}
	w := submit("limit-user")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, submit("other-user").Code)
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/api/records", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/health", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
}
