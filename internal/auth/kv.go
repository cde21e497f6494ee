// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import (
	"context"
	"time"
)

// KV is the keyed byte store backing the session and reset-token
// registries. Mutations of a single key are linearizable.
//
// Implementations return an error wrapping ErrNotFound from Get when the
// key is absent, and errors coded CodeStoreUnavailable when the backing
// store cannot be reached.
type KV interface {
	// Get returns the value stored at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value.
	// A zero ttl means the entry does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key is absent. Reports whether it stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// CompareAndDelete removes key only if its current value equals expected.
	// Reports whether it removed.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
