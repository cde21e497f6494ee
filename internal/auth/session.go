// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars

	sessionKeyPrefix     = "session:"
	sessionCreateRetries = 3
)

// Session binds an opaque token to the principal that logged in.
// Sessions do not expire; they live until Delete.
type Session struct {
	TokenHash string
	Username  string
	UserID    ulid.ULID
	LoginTime time.Time
}

// Principal returns the identity bound to the session.
func (s *Session) Principal() Principal {
	return Principal{Username: s.Username, UserID: s.UserID}
}

type sessionRecord struct {
	Username  string    `json:"username"`
	UserID    string    `json:"user_id"`
	LoginTime time.Time `json:"login_time"`
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRegistry maps session tokens to principals. Only the token hash
// is used as the store key.
type SessionRegistry struct {
	kv       KV
	now      func() time.Time
	generate func() (string, string, error)
}

// NewSessionRegistry creates a SessionRegistry over kv.
func NewSessionRegistry(kv KV) *SessionRegistry {
	return &SessionRegistry{
		kv:       kv,
		now:      time.Now,
		generate: GenerateSessionToken,
	}
}

// Create binds a fresh token to p and returns the session with the
// plaintext token. The token never collides with a live session.
func (r *SessionRegistry) Create(ctx context.Context, p Principal) (*Session, string, error) {
	session := &Session{
		Username:  p.Username,
		UserID:    p.UserID,
		LoginTime: r.now().UTC(),
	}
	value, err := json.Marshal(sessionRecord{
		Username:  session.Username,
		UserID:    session.UserID.String(),
		LoginTime: session.LoginTime,
	})
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").Wrap(err)
	}

	for attempt := 1; attempt <= sessionCreateRetries; attempt++ {
		token, hash, err := r.generate()
		if err != nil {
			return nil, "", err
		}
		stored, err := r.kv.SetNX(ctx, sessionKeyPrefix+hash, value, 0)
		if err != nil {
			return nil, "", oops.Code(CodeStoreUnavailable).
				With("operation", "store session").
				Wrap(err)
		}
		if stored {
			session.TokenHash = hash
			return session, token, nil
		}
	}

	return nil, "", oops.Code("SESSION_TOKEN_COLLISION").
		With("attempts", sessionCreateRetries).
		Errorf("could not allocate a unique session token")
}

// Lookup returns the session bound to token.
// Returns an error wrapping ErrNotFound if the token is unknown.
func (r *SessionRegistry) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeNotAuthenticated).Wrap(ErrNotFound)
	}

	hash := HashSessionToken(token)
	value, err := r.kv.Get(ctx, sessionKeyPrefix+hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeNotAuthenticated).Wrap(err)
		}
		return nil, oops.Code(CodeStoreUnavailable).
			With("operation", "load session").
			Wrap(err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, oops.Code("SESSION_CORRUPT").Wrap(err)
	}
	userID, err := ulid.Parse(rec.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").Wrap(err)
	}

	return &Session{
		TokenHash: hash,
		Username:  rec.Username,
		UserID:    userID,
		LoginTime: rec.LoginTime,
	}, nil
}

// Delete removes the session bound to token. Unknown tokens are a no-op.
func (r *SessionRegistry) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := r.kv.Delete(ctx, sessionKeyPrefix+HashSessionToken(token)); err != nil {
		return oops.Code(CodeStoreUnavailable).
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}
