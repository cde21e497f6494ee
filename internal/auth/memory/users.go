// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/hourlog/hourlog/internal/auth"
)

// UserStore is an auth.CredentialStore held in memory. It serves
// deployments with a fixed user table.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]auth.User
}

// Compile-time interface check.
var _ auth.CredentialStore = (*UserStore)(nil)

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]auth.User)}
}

// NewStaticUserStore creates a UserStore seeded from a username to
// plaintext password table. Passwords are hashed with hasher before
// they are stored.
func NewStaticUserStore(ctx context.Context, hasher auth.PasswordHasher, passwords map[string]string) (*UserStore, error) {
	s := NewUserStore()
	for _, username := range slices.Sorted(maps.Keys(passwords)) {
		if err := auth.ValidatePassword(passwords[username]); err != nil {
			return nil, oops.With("username", username).Wrap(err)
		}
		hash, err := hasher.Hash(passwords[username])
		if err != nil {
			return nil, oops.With("username", username).Wrap(err)
		}
		user, err := auth.NewUser(username, hash, nil)
		if err != nil {
			return nil, oops.With("username", username).Wrap(err)
		}
		if err := s.Create(ctx, user); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create implements auth.CredentialStore.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; ok {
		return oops.Code(auth.CodeDuplicateUsername).
			With("username", user.Username).
			Wrapf(auth.ErrDuplicate, "username already registered")
	}
	if user.Email != nil {
		for _, existing := range s.users {
			if existing.Email != nil && *existing.Email == *user.Email {
				return oops.Code(auth.CodeDuplicateEmail).
					Wrapf(auth.ErrDuplicate, "email already registered")
			}
		}
	}
	s.users[user.Username] = *user
	return nil
}

// FindByUsername implements auth.CredentialStore.
func (s *UserStore) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return &user, nil
}

// UpdatePasswordHash implements auth.CredentialStore.
func (s *UserStore) UpdatePasswordHash(_ context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	s.users[username] = user
	return nil
}

// Count returns the number of registered users.
func (s *UserStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}
