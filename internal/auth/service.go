// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hourlog/hourlog/pkg/errutil"
)

var tracer = otel.Tracer("hourlog/auth")

// dummyPasswordHash is verified against when a user doesn't exist so that
// response time does not reveal whether the username is registered.
// It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ServiceDeps holds the collaborators of a Service.
type ServiceDeps struct {
	Users    CredentialStore
	Hasher   PasswordHasher
	Sessions *SessionRegistry
	Resets   *ResetRegistry
	// Notifier delivers reset codes. Defaults to a LogNotifier.
	Notifier CodeNotifier
	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Service implements signup, login, logout, password reset, and the
// Authorize guard used by protected handlers.
type Service struct {
	users    CredentialStore
	hasher   PasswordHasher
	sessions *SessionRegistry
	resets   *ResetRegistry
	notifier CodeNotifier
	logger   *slog.Logger
}

// NewService creates a Service.
// Returns an error if any required dependency is nil.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Users == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if deps.Hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if deps.Sessions == nil {
		return nil, oops.Errorf("session registry is required")
	}
	if deps.Resets == nil {
		return nil, oops.Errorf("reset registry is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}

	return &Service{
		users:    deps.Users,
		hasher:   deps.Hasher,
		sessions: deps.Sessions,
		resets:   deps.Resets,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	SessionID string
	Username  string
	Session   *Session
}

// SessionStatus describes whether a session id is currently valid.
type SessionStatus struct {
	Authenticated bool
	Username      string
}

// Signup registers a new user. It does not log the user in.
func (s *Service) Signup(ctx context.Context, username, password string, email *string) (user *User, err error) {
	ctx, span := s.startSpan(ctx, OpSignup, username)
	defer func() { s.finish(span, OpSignup, err) }()

	if err = ValidateUsername(username); err != nil {
		return nil, err
	}
	if err = ValidatePassword(password); err != nil {
		return nil, err
	}
	if email != nil && *email == "" {
		email = nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err = NewUser(username, hash, email)
	if err != nil {
		return nil, err
	}

	if err = s.users.Create(ctx, user); err != nil {
		return nil, oops.With("operation", "create user").
			With("username", username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "username", username, "user_id", user.ID.String())
	return user, nil
}

// Login verifies credentials and opens a session.
// Unknown usernames and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (result *LoginResult, err error) {
	ctx, span := s.startSpan(ctx, OpLogin, username)
	defer func() { s.finish(span, OpLogin, err) }()

	user, lookupErr := s.users.FindByUsername(ctx, username)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, oops.Code(CodeStoreUnavailable).
			With("operation", "find user by username").
			Wrap(lookupErr)
	}

	// Always verify so that unknown users cost the same as known ones.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, errInvalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("username", username).
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return nil, errInvalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	session, token, err := s.sessions.Create(ctx, Principal{Username: user.Username, UserID: user.ID})
	if err != nil {
		return nil, oops.With("operation", "create session").Wrap(err)
	}

	return &LoginResult{SessionID: token, Username: user.Username, Session: session}, nil
}

// upgradeHash replaces a legacy digest with an argon2id one. Failures are
// logged and do not fail the login.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.Username, newHash)
	}
	if err != nil {
		RecordOperation(OpPasswordRehash, ResultError)
		s.logger.WarnContext(ctx, "password hash upgrade failed (best-effort)",
			append([]any{"operation", OpPasswordRehash, "username", user.Username}, errutil.Attrs(err)...)...)
		return
	}
	RecordOperation(OpPasswordRehash, ResultSuccess)
	user.PasswordHash = newHash
}

// Logout deletes the session. It always succeeds; store failures are logged.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	ctx, span := s.startSpan(ctx, OpLogout, "")
	defer span.End()

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		RecordOperation(OpLogout, ResultError)
		s.logger.WarnContext(ctx, "session delete failed (best-effort)",
			append([]any{"operation", OpLogout}, errutil.Attrs(err)...)...)
		return nil
	}
	RecordOperation(OpLogout, ResultSuccess)
	return nil
}

// RequestReset issues a reset code for username and hands it to the
// notifier. For unknown usernames it succeeds without issuing and returns
// an empty code.
func (s *Service) RequestReset(ctx context.Context, username string) (code string, err error) {
	ctx, span := s.startSpan(ctx, OpRequestReset, username)
	defer func() { s.finish(span, OpRequestReset, err) }()

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code(CodeStoreUnavailable).
			With("operation", "find user by username").
			Wrap(err)
	}

	code, err = s.resets.Issue(ctx, user.Username)
	if err != nil {
		return "", oops.With("operation", "issue reset code").Wrap(err)
	}

	if notifyErr := s.notifier.NotifyResetCode(ctx, user, code, s.resets.TTL()); notifyErr != nil {
		s.logger.WarnContext(ctx, "reset code delivery failed (best-effort)",
			append([]any{"operation", OpRequestReset, "username", user.Username}, errutil.Attrs(notifyErr)...)...)
	}
	return code, nil
}

// ConfirmReset replaces the password of username if code matches its live
// reset code. The code is consumed before the password is written, so it is
// never honored twice. It does not log the user in.
func (s *Service) ConfirmReset(ctx context.Context, username, code, newPassword string) (err error) {
	ctx, span := s.startSpan(ctx, OpConfirmReset, username)
	defer func() { s.finish(span, OpConfirmReset, err) }()

	if err = ValidatePassword(newPassword); err != nil {
		return err
	}

	token, err := s.resets.Verify(ctx, username, code)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err = s.resets.Consume(ctx, token); err != nil {
		return err
	}

	if err = s.users.UpdatePasswordHash(ctx, username, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeResetNoToken).
				With("username", username).
				Wrap(err)
		}
		return oops.With("operation", "update password hash").
			With("username", username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset", "username", username)
	return nil
}

// Authorize resolves sessionID to its session. It fails with
// AUTH_NOT_AUTHENTICATED when the id is empty or unknown.
func (s *Service) Authorize(ctx context.Context, sessionID string) (session *Session, err error) {
	ctx, span := s.startSpan(ctx, OpAuthorize, "")
	defer func() { s.finish(span, OpAuthorize, err) }()

	session, err = s.sessions.Lookup(ctx, sessionID)
	if err != nil {
		if errutil.HasCode(err, CodeNotAuthenticated) {
			return nil, oops.Code(CodeNotAuthenticated).Errorf("not authenticated")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.username", session.Username))
	return session, nil
}

// CurrentSession reports whether sessionID is live. It only returns an
// error when the session store is unavailable.
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (SessionStatus, error) {
	session, err := s.Authorize(ctx, sessionID)
	if err != nil {
		if errutil.HasCode(err, CodeNotAuthenticated) {
			return SessionStatus{}, nil
		}
		return SessionStatus{}, err
	}
	return SessionStatus{Authenticated: true, Username: session.Username}, nil
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
}

func (s *Service) startSpan(ctx context.Context, op, username string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("auth.operation", op)}
	if username != "" {
		attrs = append(attrs, attribute.String("auth.username", username))
	}
	return tracer.Start(ctx, "auth."+op, trace.WithAttributes(attrs...))
}

// finish records the outcome of op on span and in metrics, then ends span.
// Caller errors (bad input, bad credentials) count as failures; anything
// else counts as an error.
func (s *Service) finish(span trace.Span, op string, err error) {
	defer span.End()
	switch {
	case err == nil:
		RecordOperation(op, ResultSuccess)
	case isCallerError(err):
		RecordOperation(op, ResultFailure)
		span.SetAttributes(attribute.String("auth.error_code", errutil.Code(err)))
	default:
		RecordOperation(op, ResultError)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func isCallerError(err error) bool {
	switch errutil.Code(err) {
	case CodeInvalidInput, CodeDuplicateUsername, CodeDuplicateEmail,
		CodeInvalidCredentials, CodeNotAuthenticated,
		CodeResetNoToken, CodeResetExpired, CodeResetMismatch:
		return true
	}
	return false
}
