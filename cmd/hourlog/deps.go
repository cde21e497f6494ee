// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hourlog/hourlog/internal/auth/rediskv"
	"github.com/hourlog/hourlog/internal/store"
)

// Deps contains injectable dependencies for commands that open stores.
// Nil fields use their default implementations.
type Deps struct {
	// ConnectDB opens a PostgreSQL pool.
	// Default: store.Connect
	ConnectDB func(ctx context.Context, url string, opts store.ConnectOptions) (*pgxpool.Pool, error)

	// OpenRedis creates the redis KV.
	// Default: rediskv.New
	OpenRedis func(opts rediskv.Options) (*rediskv.KV, error)

	// NewMigrator creates a schema migrator.
	// Default: store.NewMigrator
	NewMigrator func(url string) (Migrator, error)

	// Signals overrides the default SIGINT/SIGTERM wiring. It returns a
	// context canceled on shutdown.
	Signals func(ctx context.Context) (context.Context, context.CancelFunc)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.ConnectDB == nil {
		out.ConnectDB = store.Connect
	}
	if out.OpenRedis == nil {
		out.OpenRedis = rediskv.New
	}
	if out.NewMigrator == nil {
		out.NewMigrator = func(url string) (Migrator, error) {
			return store.NewMigrator(url) //nolint:wrapcheck // store returns coded errors
		}
	}
	if out.Signals == nil {
		out.Signals = notifyShutdown
	}
	return &out
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}
