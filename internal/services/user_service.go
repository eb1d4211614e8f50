package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/AnshRaj112/kokoro-journal/pkg/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrUserExists is returned by CreateUser when the email is taken.
var ErrUserExists = errors.New("user with this email already exists")

// UserService manages local accounts in Postgres.
type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// GetUserByEmail loads an account by normalized email. It returns
// (nil, nil) when no account exists.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, email, password_hash, is_active
		FROM users WHERE LOWER(email) = $1
	`, utils.NormalizeEmail(email)).Scan(&user.ID, &user.CreatedAt, &user.Email, &user.PasswordHash, &user.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser registers an account whose password is the birthday string.
func (s *UserService) CreateUser(ctx context.Context, email, birthday string) (*models.User, error) {
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	if len([]rune(birthday)) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := utils.HashPassword(birthday)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		CreatedAt:    time.Now().UTC(),
		Email:        utils.NormalizeEmail(email),
		PasswordHash: hash,
		IsActive:     true,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, created_at, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.CreatedAt, user.Email, user.PasswordHash, user.IsActive)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// EnsureUser creates the account if it does not exist yet.
func (s *UserService) EnsureUser(ctx context.Context, email, birthday string) (*models.User, error) {
	user, err := s.CreateUser(ctx, email, birthday)
	if errors.Is(err, ErrUserExists) {
		return s.GetUserByEmail(ctx, email)
	}
	return user, err
}
