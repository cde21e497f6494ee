// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import (
	"context"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Credential validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 3
	MaxPasswordLength = 1024
)

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	Email        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User with a fresh ID.
// The password must already be hashed.
func NewUser(username, passwordHash string, email *string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeInvalidInput).Errorf("password hash cannot be empty")
	}
	if email != nil {
		if err := ValidateEmail(*email); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	Username string
	UserID   ulid.ULID
}

// ValidateUsername checks username length. Usernames are otherwise opaque
// and compared exactly.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength {
		return oops.Code(CodeInvalidInput).
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if n > MaxUsernameLength {
		return oops.Code(CodeInvalidInput).
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	return nil
}

// ValidatePassword checks plaintext password length.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return oops.Code(CodeInvalidInput).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if n > MaxPasswordLength {
		return oops.Code(CodeInvalidInput).
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code(CodeInvalidInput).Errorf("email address is malformed")
	}
	return nil
}

// CredentialStore is the durable user table.
type CredentialStore interface {
	// Create inserts a user. Uniqueness of username (and email, when set)
	// is checked atomically with the insert.
	Create(ctx context.Context, user *User) error

	// FindByUsername returns the user with exactly this username.
	// Returns an error wrapping ErrNotFound if absent.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// UpdatePasswordHash replaces the stored digest.
	// Returns an error wrapping ErrNotFound if absent.
	UpdatePasswordHash(ctx context.Context, username, hash string) error
}
