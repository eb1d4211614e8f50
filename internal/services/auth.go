package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"go.uber.org/zap"
)

// CredentialVerifier checks an email/password pair against an identity
// provider. Failures are reported as *AuthError.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*models.Identity, error)
}

// Session is the result of a successful sign-in.
type Session struct {
	Token    string
	Identity models.Identity
}

// Auth is the authentication boundary used by handlers and the session gate.
type Auth struct {
	verifier CredentialVerifier
	sessions *SessionStore
	log      *zap.Logger
}

func NewAuth(verifier CredentialVerifier, sessions *SessionStore, log *zap.Logger) *Auth {
	return &Auth{verifier: verifier, sessions: sessions, log: log.Named("auth")}
}

// SignIn verifies credentials and opens a session. A password shorter than
// MinPasswordLength is rejected locally with ErrPasswordTooShort.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		SignInsTotal.WithLabelValues(string(KindPrecondition)).Inc()
		return nil, ErrPasswordTooShort
	}

	identity, err := a.verifier.Verify(ctx, email, password)
	if err != nil {
		described := DescribeAuthError(err)
		SignInsTotal.WithLabelValues(string(described.Kind)).Inc()
		a.log.Warn("sign-in failed",
			zap.String("kind", string(described.Kind)),
			zap.Error(err),
		)
		return nil, err
	}

	token, err := a.sessions.Create(ctx, *identity)
	if err != nil {
		SignInsTotal.WithLabelValues(string(KindUnknown)).Inc()
		a.log.Error("failed to create session", zap.String("user_id", identity.ID), zap.Error(err))
		return nil, fmt.Errorf("create session: %w", err)
	}

	SignInsTotal.WithLabelValues("ok").Inc()
	a.log.Info("signed in", zap.String("user_id", identity.ID))
	return &Session{Token: token, Identity: *identity}, nil
}

// SignOut ends the session and notifies identity listeners.
func (a *Auth) SignOut(ctx context.Context, token string) error {
	if err := a.sessions.Invalidate(ctx, token); err != nil {
		a.log.Error("sign-out failed", zap.Error(err))
		return err
	}
	return nil
}

// Current returns the identity of token or ErrSessionNotFound.
func (a *Auth) Current(ctx context.Context, token string) (*models.Identity, error) {
	return a.sessions.Lookup(ctx, token)
}

// OnIdentityChange calls listener with the current identity (nil when the
// token has no session) and again with nil when the session ends.
// Listener calls never overlap. The returned unsubscribe is idempotent.
func (a *Auth) OnIdentityChange(ctx context.Context, token string, listener func(*models.Identity)) (func(), error) {
	var (
		mu        sync.Mutex
		delivered bool
		signedOut bool
	)

	// Watch before looking up so a sign-out in between is not lost.
	stop, err := a.sessions.Watch(ctx, token, func() {
		mu.Lock()
		defer mu.Unlock()
		signedOut = true
		if delivered {
			listener(nil)
		}
	})
	if err != nil {
		return nil, err
	}

	identity, err := a.sessions.Lookup(ctx, token)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		stop()
		return nil, err
	}

	mu.Lock()
	delivered = true
	if signedOut {
		identity = nil
	}
	listener(identity)
	mu.Unlock()

	return stop, nil
}
