// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/hourlog/hourlog/internal/auth"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// KV is an auth.KV backed by a map guarded by a single mutex.
// Expired entries are dropped when next touched.
type KV struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// Compile-time interface check.
var _ auth.KV = (*KV)(nil)

// NewKV creates an empty KV.
func NewKV() *KV {
	return &KV{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Len returns the number of live entries.
func (k *KV) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	n := 0
	for _, e := range k.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// lookup returns the live entry at key. Caller must hold mu.
func (k *KV) lookup(key string) (entry, bool) {
	e, ok := k.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(k.now()) {
		delete(k.entries, key)
		return entry{}, false
	}
	return e, true
}

func (k *KV) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = k.now().Add(ttl)
	}
	return e
}

// Get implements auth.KV.
func (k *KV) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.lookup(key)
	if !ok {
		return nil, oops.With("key", key).Wrap(auth.ErrNotFound)
	}
	return bytes.Clone(e.value), nil
}

// Set implements auth.KV.
func (k *KV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[key] = k.newEntry(value, ttl)
	return nil
}

// SetNX implements auth.KV.
func (k *KV) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.lookup(key); ok {
		return false, nil
	}
	k.entries[key] = k.newEntry(value, ttl)
	return true, nil
}

// Delete implements auth.KV.
func (k *KV) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.entries, key)
	return nil
}

// CompareAndDelete implements auth.KV.
func (k *KV) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.lookup(key)
	if !ok || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	delete(k.entries, key)
	return true, nil
}

// Ping implements auth.KV. It never fails.
func (k *KV) Ping(context.Context) error {
	return nil
}
