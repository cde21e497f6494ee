// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/internal/auth/postgres"
	"github.com/hourlog/hourlog/pkg/errutil"
)

func newTestUser(t *testing.T, email *string) *auth.User {
	t.Helper()
	user, err := auth.NewUser("alice", "$argon2id$v=19$stub", email)
	require.NoError(t, err)
	return user
}

func TestUserStore_Create(t *testing.T) {
	email := "alice@example.com"

	tests := []struct {
		name      string
		email     *string
		execErr   error
		wantCode  string
		wantIsDup bool
	}{
		{name: "inserts user"},
		{name: "inserts user with email", email: &email},
		{
			name:      "duplicate username",
			execErr:   &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"},
			wantCode:  auth.CodeDuplicateUsername,
			wantIsDup: true,
		},
		{
			name:      "duplicate email",
			email:     &email,
			execErr:   &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"},
			wantCode:  auth.CodeDuplicateEmail,
			wantIsDup: true,
		},
		{
			name:     "other constraint violation is a store failure",
			execErr:  &pgconn.PgError{Code: pgerrcode.NotNullViolation, ConstraintName: "users_password_hash"},
			wantCode: auth.CodeStoreUnavailable,
		},
		{
			name:     "connection failure",
			execErr:  errors.New("connection refused"),
			wantCode: auth.CodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			user := newTestUser(t, tt.email)
			exp := mock.ExpectExec(`INSERT INTO users`).
				WithArgs(user.ID.String(), "alice", user.PasswordHash, tt.email, user.CreatedAt, user.UpdatedAt)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err = postgres.NewUserStore(mock).Create(context.Background(), user)
			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				errutil.AssertErrorCode(t, err, tt.wantCode)
				assert.Equal(t, tt.wantIsDup, errors.Is(err, auth.ErrDuplicate))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserStore_FindByUsername(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "username", "password_hash", "email", "created_at", "updated_at"}
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		email := "alice@example.com"
		mock.ExpectQuery(`SELECT id, username, password_hash, email, created_at, updated_at\s+FROM users\s+WHERE username = \$1`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(columns).AddRow(id.String(), "alice", "$argon2id$x", &email, now, now))

		user, err := postgres.NewUserStore(mock).FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "$argon2id$x", user.PasswordHash)
		require.NotNil(t, user.Email)
		assert.Equal(t, email, *user.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null email", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM users`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(columns).AddRow(ulid.Make().String(), "alice", "h", (*string)(nil), now, now))

		user, err := postgres.NewUserStore(mock).FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, user.Email)
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM users`).
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, err = postgres.NewUserStore(mock).FindByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.Empty(t, errutil.Code(err))
	})

	t.Run("query failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM users`).
			WithArgs("alice").
			WillReturnError(errors.New("connection refused"))

		_, err = postgres.NewUserStore(mock).FindByUsername(ctx, "alice")
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM users`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(columns).AddRow("not-a-ulid", "alice", "h", (*string)(nil), now, now))

		_, err = postgres.NewUserStore(mock).FindByUsername(ctx, "alice")
		errutil.AssertErrorCode(t, err, "USER_INVALID_ID")
	})
}

func TestUserStore_UpdatePasswordHash(t *testing.T) {
	ctx := context.Background()

	t.Run("updates", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET password_hash = \$2, updated_at = \$3`).
			WithArgs("alice", "$argon2id$new", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, postgres.NewUserStore(mock).UpdatePasswordHash(ctx, "alice", "$argon2id$new"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users`).
			WithArgs("ghost", "h", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = postgres.NewUserStore(mock).UpdatePasswordHash(ctx, "ghost", "h")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users`).
			WithArgs("alice", "h", pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))

		err = postgres.NewUserStore(mock).UpdatePasswordHash(ctx, "alice", "h")
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
	})
}

func TestUserStore_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := postgres.NewUserStore(mock).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
