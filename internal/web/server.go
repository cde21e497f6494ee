// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package web exposes the auth service over HTTP/JSON and provides the
// session guard for protected routes.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/internal/observability"
)

// SessionHeader carries the session id on every authenticated request.
const SessionHeader = "X-Session-Id"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

const defaultMaxBodyBytes = 1 << 20

// AuthService is the subset of auth.Service the handlers use.
type AuthService interface {
	Signup(ctx context.Context, username, password string, email *string) (*auth.User, error)
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	RequestReset(ctx context.Context, username string) (string, error)
	ConfirmReset(ctx context.Context, username, code, newPassword string) error
	Authorize(ctx context.Context, sessionID string) (*auth.Session, error)
	CurrentSession(ctx context.Context, sessionID string) (auth.SessionStatus, error)
}

// Options configures a Server.
type Options struct {
	Addr string
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
	// AllowedOrigins are glob patterns matched against the Origin header.
	// Empty disables CORS.
	AllowedOrigins []string
	// ExposeResetCode includes reset codes in /api/reset/request responses.
	ExposeResetCode bool
	// Metrics is optional.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the API server.
type Server struct {
	svc        AuthService
	opts       Options
	origins    []glob.Glob
	logger     *slog.Logger
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server. Origin patterns are compiled here.
func NewServer(svc AuthService, opts Options) (*Server, error) {
	if svc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	origins := make([]glob.Glob, 0, len(opts.AllowedOrigins))
	for _, pattern := range opts.AllowedOrigins {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("WEB_INVALID_ORIGIN").With("pattern", pattern).Wrap(err)
		}
		origins = append(origins, g)
	}

	s := &Server{svc: svc, opts: opts, origins: origins, logger: logger}
	s.handler = s.buildHandler()
	return s, nil
}

// Handler returns the fully wrapped API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	r := mux.NewRouter()
	r.Use(recordRoute)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/reset/request", s.handleResetRequest).Methods(http.MethodPost)
	api.HandleFunc("/reset/confirm", s.handleResetConfirm).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.RequireSession)
	protected.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	var h http.Handler = r
	h = s.limitBody(h)
	h = s.instrument(h)
	h = s.cors(h)
	h = s.trace(h)
	h = s.requestID(h)
	return h
}

// Start begins serving. The returned channel receives a serve error, if any,
// and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.opts.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
