// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Reset code configuration.
const (
	ResetCodeLength   = 6
	ResetCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultResetTTL   = 15 * time.Minute

	resetKeyPrefix = "reset:"
	// Entries outlive their expiry so that a late attempt reports
	// RESET_EXPIRED instead of RESET_NO_TOKEN.
	resetRetention = time.Hour
)

// ResetToken is a live password-reset code for one username.
type ResetToken struct {
	Username  string
	CodeHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time

	raw []byte
}

// IsExpiredAt reports whether the token is no longer usable at t.
func (t *ResetToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type resetRecord struct {
	CodeHash  string    `json:"code_hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GenerateResetCode returns a random code of ResetCodeLength characters
// drawn uniformly from ResetCodeAlphabet.
func GenerateResetCode() (string, error) {
	limit := big.NewInt(int64(len(ResetCodeAlphabet)))
	var sb strings.Builder
	sb.Grow(ResetCodeLength)
	for range ResetCodeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", oops.Code("RESET_CODE_GENERATE_FAILED").Wrap(err)
		}
		sb.WriteByte(ResetCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// HashResetCode normalizes the code to upper case and returns its SHA256 hash.
func HashResetCode(code string) string {
	h := sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(code))))
	return hex.EncodeToString(h[:])
}

// ResetRegistry holds at most one reset code per username. Expired codes
// are removed when a verification observes them.
type ResetRegistry struct {
	kv       KV
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewResetRegistry creates a ResetRegistry over kv. A non-positive ttl
// selects DefaultResetTTL.
func NewResetRegistry(kv KV, ttl time.Duration) *ResetRegistry {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetRegistry{
		kv:       kv,
		ttl:      ttl,
		now:      time.Now,
		generate: GenerateResetCode,
	}
}

// TTL returns how long issued codes stay valid.
func (r *ResetRegistry) TTL() time.Duration {
	return r.ttl
}

// Issue stores a fresh code for username, replacing any previous one,
// and returns the plaintext code.
func (r *ResetRegistry) Issue(ctx context.Context, username string) (string, error) {
	code, err := r.generate()
	if err != nil {
		return "", err
	}

	now := r.now().UTC()
	value, err := json.Marshal(resetRecord{
		CodeHash:  HashResetCode(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	})
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").Wrap(err)
	}

	if err := r.kv.Set(ctx, resetKeyPrefix+username, value, r.ttl+resetRetention); err != nil {
		return "", oops.Code(CodeStoreUnavailable).
			With("operation", "store reset token").
			With("username", username).
			Wrap(err)
	}
	return code, nil
}

// Verify checks code against the live token for username.
// Fails with RESET_NO_TOKEN, RESET_EXPIRED (deleting the token), or
// RESET_MISMATCH. The comparison ignores case.
func (r *ResetRegistry) Verify(ctx context.Context, username, code string) (*ResetToken, error) {
	token, err := r.load(ctx, username)
	if err != nil {
		return nil, err
	}

	if token.IsExpiredAt(r.now()) {
		if _, err := r.kv.CompareAndDelete(ctx, resetKeyPrefix+username, token.raw); err != nil {
			return nil, oops.Code(CodeStoreUnavailable).
				With("operation", "delete expired reset token").
				With("username", username).
				Wrap(err)
		}
		return nil, oops.Code(CodeResetExpired).
			With("username", username).
			Errorf("reset code has expired")
	}

	candidate := HashResetCode(code)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(token.CodeHash)) != 1 {
		return nil, oops.Code(CodeResetMismatch).
			With("username", username).
			Errorf("reset code does not match")
	}
	return token, nil
}

// Consume deletes exactly the verified token. It fails with RESET_NO_TOKEN
// when the token was already consumed or replaced.
func (r *ResetRegistry) Consume(ctx context.Context, token *ResetToken) error {
	deleted, err := r.kv.CompareAndDelete(ctx, resetKeyPrefix+token.Username, token.raw)
	if err != nil {
		return oops.Code(CodeStoreUnavailable).
			With("operation", "consume reset token").
			With("username", token.Username).
			Wrap(err)
	}
	if !deleted {
		return oops.Code(CodeResetNoToken).
			With("username", token.Username).
			Errorf("no active reset code")
	}
	return nil
}

func (r *ResetRegistry) load(ctx context.Context, username string) (*ResetToken, error) {
	value, err := r.kv.Get(ctx, resetKeyPrefix+username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeResetNoToken).
				With("username", username).
				Errorf("no active reset code")
		}
		return nil, oops.Code(CodeStoreUnavailable).
			With("operation", "load reset token").
			With("username", username).
			Wrap(err)
	}

	var rec resetRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, oops.Code("RESET_TOKEN_CORRUPT").Wrap(err)
	}
	return &ResetToken{
		Username:  username,
		CodeHash:  rec.CodeHash,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
		raw:       bytes.Clone(value),
	}, nil
}
