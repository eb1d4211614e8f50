package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/kokoro-journal/internal/middleware"
	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/AnshRaj112/kokoro-journal/internal/services"
	"go.uber.org/zap"
)

// SignInRequest carries the credentials; the birthday is the password.
type SignInRequest struct {
	Email    string `json:"email"`
	Birthday string `json:"birthday"`
}

// AuthResponse answers sign-in and identity requests.
type AuthResponse struct {
	Success bool                         `json:"success"`
	Message string                       `json:"message"`
	Kind    services.CredentialErrorKind `json:"kind,omitempty"`
	Token   string                       `json:"token,omitempty"`
	User    *models.Identity             `json:"user,omitempty"`
}

// SignIn handles POST /api/auth/signin.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.auth.SignIn(r.Context(), strings.TrimSpace(req.Email), req.Birthday)
	if err != nil {
		writeSignInError(w, services.DescribeAuthError(err))
		return
	}

	h.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		Token:   session.Token,
		User:    &session.Identity,
	})
}

// SignOut handles POST /api/auth/signout.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), middleware.TokenFromRequest(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Signed out"})
}

// Me handles GET /api/auth/me. Requires RequireIdentity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "OK", User: identity})
}

// LoginPage handles GET /login. A visitor who is already signed in goes home.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		if _, err := h.auth.Current(r.Context(), token); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	h.renderPage(w, http.StatusOK, "login.html", loginPageData{})
}

// Login handles the credential form posted to /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := r.ParseForm(); err != nil {
		h.renderPage(w, http.StatusBadRequest, "login.html", loginPageData{Error: "Invalid form"})
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))

	session, err := h.auth.SignIn(r.Context(), email, r.PostFormValue("birthday"))
	if err != nil {
		described := services.DescribeAuthError(err)
		h.renderPage(w, described.StatusCode(), "login.html", loginPageData{Email: email, Error: described.Message})
		return
	}

	h.setSessionCookie(w, session.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SignInThrottled answers sign-in posts rejected by LoginRateLimit the same
// way a throttled credential check is answered: the login page for the form,
// JSON for the API.
func (h *Handler) SignInThrottled(w http.ResponseWriter, r *http.Request) {
	described := services.DescribeAuthError(&services.AuthError{Code: services.CodeTooManyRequests})
	if r.URL.Path != "/login" {
		writeSignInError(w, described)
		return
	}

	var email string
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := r.ParseForm(); err == nil {
		email = strings.TrimSpace(r.PostFormValue("email"))
	}
	h.renderPage(w, described.StatusCode(), "login.html", loginPageData{Email: email, Error: described.Message})
}

func writeSignInError(w http.ResponseWriter, described services.CredentialError) {
	writeJSON(w, described.StatusCode(), AuthResponse{
		Success: false,
		Message: described.Message,
		Kind:    described.Kind,
	})
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), middleware.TokenFromRequest(r)); err != nil && !errors.Is(err, services.ErrSessionNotFound) {
		h.log.Error("logout failed", zap.Error(err))
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(services.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
