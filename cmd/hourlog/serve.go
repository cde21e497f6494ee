// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/internal/config"
	"github.com/hourlog/hourlog/internal/logging"
	"github.com/hourlog/hourlog/internal/observability"
	"github.com/hourlog/hourlog/internal/web"
	"github.com/hourlog/hourlog/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server. The configured credential and session stores
must be reachable at startup; otherwise serve exits with an error.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func notifyShutdown(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// runServe runs the API until ctx is canceled, a shutdown signal arrives,
// or a listener fails.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *Deps) error {
	deps = deps.withDefaults()

	logger, err := logging.SetDefault("hourlog", version, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return oops.Code(config.CodeInvalid).Wrap(err)
	}

	logger.Info("starting hourlog",
		"addr", cfg.Server.Addr,
		"credentials", cfg.Credentials.Backend,
		"sessions", cfg.Sessions.Backend,
	)

	a, err := buildApp(ctx, cfg, deps, logger)
	if err != nil {
		errutil.LogError(logger, "startup failed", err)
		return err
	}
	defer a.Close()

	ctx, stop := deps.Signals(ctx)
	defer stop()

	var obs *observability.Server
	var metrics *observability.Metrics
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obs = observability.NewServer(cfg.Metrics.Addr, observability.PingAll(a.pingers...), logger)
		auth.RegisterMetrics(obs.Registry())
		obsErrCh, err = obs.Start()
		if err != nil {
			return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(err)
		}
		metrics = obs.Metrics()
	}

	api, err := web.NewServer(a.service, web.Options{
		Addr:            cfg.Server.Addr,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		ExposeResetCode: cfg.Reset.ExposeCode,
		Metrics:         metrics,
		Logger:          logger,
	})
	if err != nil {
		stopObservability(obs, cfg, logger)
		return oops.Code("SERVE_FAILED").With("operation", "create api server").Wrap(err)
	}
	apiErrCh, err := api.Start()
	if err != nil {
		stopObservability(obs, cfg, logger)
		return oops.Code("SERVE_FAILED").With("operation", "start api server").Wrap(err)
	}

	if cfg.Reset.ExposeCode {
		logger.Warn("reset codes are returned in HTTP responses; do not use in production")
	}
	cmd.Println("hourlog listening on " + api.Addr())

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-apiErrCh:
		serveErr = oops.Code("SERVE_FAILED").With("server", "api").Wrap(err)
	case err := <-obsErrCh:
		serveErr = oops.Code("SERVE_FAILED").With("server", "observability").Wrap(err)
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := api.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(obs, cfg, logger)

	if serveErr != nil {
		errutil.LogError(logger, "server failed", serveErr)
		return serveErr
	}
	logger.Info("shutdown complete")
	return nil
}

func stopObservability(s *observability.Server, cfg *config.Config, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}
