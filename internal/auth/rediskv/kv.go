// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package rediskv implements auth.KV on Redis so that sessions and reset
// codes are shared between server instances.
package rediskv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sony/gobreaker"

	"github.com/hourlog/hourlog/internal/auth"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
	if redis.call('get', KEYS[1]) == ARGV[1] then
		return redis.call('del', KEYS[1])
	end
	return 0
`)

// Options configures a KV.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key.
	Prefix string
	// DialTimeout bounds connection setup. Defaults to 2s.
	DialTimeout time.Duration
	// MaxRetries is passed to the client; -1 disables retries.
	MaxRetries int
	Logger     *slog.Logger
}

// KV is an auth.KV backed by Redis. Calls go through a circuit breaker;
// while it is open they fail immediately with STORE_UNAVAILABLE.
type KV struct {
	rdb    *redis.Client
	cb     *gobreaker.CircuitBreaker
	prefix string
}

// Compile-time interface check.
var _ auth.KV = (*KV)(nil)

// New creates a KV. It does not contact the server; call Ping to check
// connectivity.
func New(opts Options) (*KV, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dialTimeout,
		MaxRetries:  opts.MaxRetries,
	})
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		_ = rdb.Close() //nolint:errcheck // instrumentation error takes precedence
		return nil, oops.Code("KV_INIT_FAILED").With("operation", "instrument redis tracing").Wrap(err)
	}

	return &KV{
		rdb:    rdb,
		cb:     newBreaker(logger),
		prefix: opts.Prefix,
	}, nil
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-kv",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		// A missing key is an answer, not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})
}

// Close closes the client.
func (k *KV) Close() error {
	return k.rdb.Close()
}

// State reports the breaker state.
func (k *KV) State() gobreaker.State {
	return k.cb.State()
}

func (k *KV) key(key string) string {
	return k.prefix + key
}

// do runs fn through the breaker and codes failures.
func (k *KV) do(op, key string, fn func() (any, error)) (any, error) {
	res, err := k.cb.Execute(fn)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, redis.Nil) {
		return nil, oops.With("key", key).Wrap(auth.ErrNotFound)
	}
	return nil, oops.Code(auth.CodeStoreUnavailable).
		With("operation", op).
		With("key", key).
		Wrap(err)
}

// Get implements auth.KV.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := k.do("get", key, func() (any, error) {
		return k.rdb.Get(ctx, k.key(key)).Bytes()
	})
	if err != nil {
		return nil, err
	}
	b, _ := res.([]byte)
	return b, nil
}

// Set implements auth.KV.
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := k.do("set", key, func() (any, error) {
		return nil, k.rdb.Set(ctx, k.key(key), value, ttl).Err()
	})
	return err
}

// SetNX implements auth.KV.
func (k *KV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	res, err := k.do("setnx", key, func() (any, error) {
		return k.rdb.SetNX(ctx, k.key(key), value, ttl).Result()
	})
	if err != nil {
		return false, err
	}
	stored, _ := res.(bool)
	return stored, nil
}

// Delete implements auth.KV.
func (k *KV) Delete(ctx context.Context, key string) error {
	_, err := k.do("del", key, func() (any, error) {
		return nil, k.rdb.Del(ctx, k.key(key)).Err()
	})
	return err
}

// CompareAndDelete implements auth.KV.
func (k *KV) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	res, err := k.do("compare_and_delete", key, func() (any, error) {
		return compareAndDelete.Run(ctx, k.rdb, []string{k.key(key)}, expected).Int64()
	})
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// Ping implements auth.KV.
func (k *KV) Ping(ctx context.Context) error {
	_, err := k.do("ping", "", func() (any, error) {
		return nil, k.rdb.Ping(ctx).Err()
	})
	return err
}
