package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a locally managed account row (AUTH_PROVIDER=local).
type User struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
}
