// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/internal/auth/memory"
	"github.com/hourlog/hourlog/internal/auth/postgres"
	"github.com/hourlog/hourlog/internal/auth/rediskv"
	"github.com/hourlog/hourlog/internal/config"
	"github.com/hourlog/hourlog/internal/observability"
	"github.com/hourlog/hourlog/internal/store"
)

// app holds the wired auth stack and what must be closed with it.
type app struct {
	service *auth.Service
	pingers []observability.Pinger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp opens the configured stores and wires the auth service. Any
// store that cannot be reached is fatal.
func buildApp(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger) (_ *app, err error) {
	deps = deps.withDefaults()
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	hasher := auth.NewArgon2idHasher()

	users, err := openUsers(ctx, cfg, deps, hasher, logger, a)
	if err != nil {
		return nil, err
	}

	kv, err := openKV(ctx, cfg, deps, logger, a)
	if err != nil {
		return nil, err
	}

	a.service, err = auth.NewService(auth.ServiceDeps{
		Users:    users,
		Hasher:   hasher,
		Sessions: auth.NewSessionRegistry(kv),
		Resets:   auth.NewResetRegistry(kv, cfg.Reset.TTL),
		Notifier: auth.NewLogNotifier(logger),
		Logger:   logger,
	})
	if err != nil {
		return nil, oops.Code("APP_INIT_FAILED").Wrap(err)
	}
	return a, nil
}

func openUsers(ctx context.Context, cfg *config.Config, deps *Deps, hasher auth.PasswordHasher, logger *slog.Logger, a *app) (auth.CredentialStore, error) {
	switch cfg.Credentials.Backend {
	case config.CredentialsStatic:
		users, err := memory.NewStaticUserStore(ctx, hasher, cfg.Credentials.StaticUsers)
		if err != nil {
			return nil, oops.Code("APP_INIT_FAILED").With("operation", "seed static users").Wrap(err)
		}
		logger.Info("credential store ready", "backend", config.CredentialsStatic, "users", len(cfg.Credentials.StaticUsers))
		return users, nil

	case config.CredentialsPostgres:
		pool, err := deps.ConnectDB(ctx, cfg.Database.URL, store.ConnectOptions{
			Retries:   cfg.Database.ConnectRetries,
			BaseDelay: store.DefaultConnectOptions.BaseDelay,
			MaxDelay:  store.DefaultConnectOptions.MaxDelay,
			Logger:    logger,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // store returns coded errors
		}
		a.closers = append(a.closers, pool.Close)
		a.pingers = append(a.pingers, pool)

		users := postgres.NewUserStore(pool)
		count, err := users.Count(ctx)
		if err != nil {
			return nil, err //nolint:wrapcheck // store returns coded errors
		}
		logger.Info("credential store ready", "backend", config.CredentialsPostgres, "users", count)
		return users, nil
	}
	return nil, oops.Code(config.CodeInvalid).Errorf("unknown credentials backend %q", cfg.Credentials.Backend)
}

func openKV(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger, a *app) (auth.KV, error) {
	switch cfg.Sessions.Backend {
	case config.SessionsMemory:
		kv := memory.NewKV()
		a.pingers = append(a.pingers, kv)
		return kv, nil

	case config.SessionsRedis:
		kv, err := deps.OpenRedis(rediskv.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.KeyPrefix,
			Logger:   logger,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // rediskv returns coded errors
		}
		a.closers = append(a.closers, func() {
			if closeErr := kv.Close(); closeErr != nil {
				logger.Warn("error closing redis client", "error", closeErr)
			}
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := kv.Ping(pingCtx); err != nil {
			return nil, err //nolint:wrapcheck // rediskv returns coded errors
		}
		a.pingers = append(a.pingers, kv)
		logger.Info("session store ready", "backend", config.SessionsRedis, "addr", cfg.Redis.Addr)
		return kv, nil
	}
	return nil, oops.Code(config.CodeInvalid).Errorf("unknown sessions backend %q", cfg.Sessions.Backend)
}
