package services

import (
	"context"
	"errors"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/AnshRaj112/kokoro-journal/pkg/utils"
)

// LocalVerifier checks credentials against accounts stored in Postgres.
// It reports the same provider codes as FirebaseVerifier.
type LocalVerifier struct {
	users    *UserService
	attempts *LoginAttempts
}

func NewLocalVerifier(users *UserService, attempts *LoginAttempts) *LocalVerifier {
	return &LocalVerifier{users: users, attempts: attempts}
}

func (v *LocalVerifier) Verify(ctx context.Context, email, password string) (*models.Identity, error) {
	if err := utils.ValidateEmail(email); err != nil {
		return nil, &AuthError{Code: CodeInvalidEmail, Err: err}
	}

	key := utils.NormalizeEmail(email)
	if v.attempts != nil && v.attempts.Blocked(ctx, key) {
		return nil, &AuthError{Code: CodeTooManyRequests}
	}

	user, err := v.users.GetUserByEmail(ctx, key)
	if err != nil {
		return nil, &AuthError{Code: "auth/internal-error", Err: err}
	}
	if user == nil {
		v.fail(ctx, key)
		return nil, &AuthError{Code: CodeInvalidCredential, Err: errors.New("unknown account")}
	}
	if !user.IsActive {
		return nil, &AuthError{Code: CodeUserDisabled}
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		v.fail(ctx, key)
		return nil, &AuthError{Code: CodeInvalidCredential, Err: err}
	}

	if v.attempts != nil {
		v.attempts.Reset(ctx, key)
	}
	return &models.Identity{ID: user.ID.String(), Email: user.Email}, nil
}

func (v *LocalVerifier) fail(ctx context.Context, key string) {
	if v.attempts != nil {
		v.attempts.Fail(ctx, key)
	}
}

// CreateUser registers a local account, or returns the existing one.
func (v *LocalVerifier) CreateUser(ctx context.Context, email, birthday string) (*models.User, error) {
	return v.users.EnsureUser(ctx, email, birthday)
}
