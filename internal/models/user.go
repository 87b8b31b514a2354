package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
// Participants on a bill are always registered users; the realtime gateway
// and the mutation service identify them by ID, never by display name.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Name is the display name shown on bill snapshots.
	Name string

	// Email is the user's email address (unique). Used for login.
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// CreatedAt is when the account was created.
	CreatedAt time.Time
}

// NewUser creates a user with a fresh ID and creation timestamp.
func NewUser(email, name, passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}
