// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package postgres implements auth.CredentialStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/hourlog/hourlog/internal/auth"
)

// Unique constraints declared by the users migration.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// poolIface is the subset of *pgxpool.Pool used here. pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserStore implements auth.CredentialStore using PostgreSQL.
type UserStore struct {
	pool poolIface
}

// Compile-time interface check.
var _ auth.CredentialStore = (*UserStore)(nil)

// NewUserStore creates a new UserStore.
func NewUserStore(pool poolIface) *UserStore {
	return &UserStore{pool: pool}
}

// Create inserts a user. The unique indexes on username and email decide
// races between concurrent signups.
func (s *UserStore) Create(ctx context.Context, user *auth.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID.String(),
		user.Username,
		user.PasswordHash,
		user.Email,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if pgErr.ConstraintName == emailConstraint {
			return oops.Code(auth.CodeDuplicateEmail).
				With("constraint", pgErr.ConstraintName).
				Wrapf(auth.ErrDuplicate, "email already registered")
		}
		return oops.Code(auth.CodeDuplicateUsername).
			With("username", user.Username).
			With("constraint", pgErr.ConstraintName).
			Wrapf(auth.ErrDuplicate, "username already registered")
	}

	return oops.Code(auth.CodeStoreUnavailable).
		With("operation", "insert user").
		With("username", user.Username).
		Wrap(err)
}

// FindByUsername returns the user with exactly this username.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, email, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username)

	var (
		idStr     string
		user      auth.User
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&idStr, &user.Username, &user.PasswordHash, &user.Email, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code(auth.CodeStoreUnavailable).
			With("operation", "find user by username").
			With("username", username).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	return &user, nil
}

// UpdatePasswordHash replaces the digest and bumps updated_at.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE username = $1
	`, username, hash, time.Now())
	if err != nil {
		return oops.Code(auth.CodeStoreUnavailable).
			With("operation", "update password hash").
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Count returns the number of registered users.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, oops.Code(auth.CodeStoreUnavailable).
			With("operation", "count users").
			Wrap(err)
	}
	return n, nil
}
