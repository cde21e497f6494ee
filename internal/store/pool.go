// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package store owns the PostgreSQL schema and connection setup.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls how Connect retries.
type ConnectOptions struct {
	// Retries is the number of attempts after the first. Zero tries once.
	Retries uint64
	// BaseDelay is the first backoff interval; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps each backoff interval.
	MaxDelay time.Duration
	Logger   *slog.Logger
}

// DefaultConnectOptions retries for roughly half a minute.
var DefaultConnectOptions = ConnectOptions{
	Retries:   5,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  8 * time.Second,
}

// pingFunc opens and checks a pool. Replaced in tests.
type pingFunc func(ctx context.Context) (*pgxpool.Pool, error)

// Connect opens a pool for databaseURL and pings it, retrying with
// exponential backoff. It fails with STORE_UNAVAILABLE once the retries
// are exhausted.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_URL").Wrap(err)
	}

	open := func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	}
	return connectWithRetry(ctx, open, opts)
}

func connectWithRetry(ctx context.Context, open pingFunc, opts ConnectOptions) (*pgxpool.Pool, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := opts.BaseDelay
	if base <= 0 {
		base = DefaultConnectOptions.BaseDelay
	}

	backoff := retry.NewExponential(base)
	if opts.MaxDelay > 0 {
		backoff = retry.WithCappedDuration(opts.MaxDelay, backoff)
	}
	backoff = retry.WithMaxRetries(opts.Retries, backoff)

	var pool *pgxpool.Pool
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := open(ctx)
		if err != nil {
			logger.WarnContext(ctx, "database connection failed",
				"attempt", attempt,
				"max_attempts", opts.Retries+1,
				"error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("attempts", attempt).
			Wrapf(err, "database unreachable")
	}
	return pool, nil
}
