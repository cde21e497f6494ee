// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2Params are the argon2id cost parameters used when hashing.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on an
	// unparseable digest.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade reports whether the digest was produced by a legacy scheme.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. Verify also
// accepts bcrypt digests and the unsalted hex SHA-256 digests written by
// earlier deployments so that those accounts can still log in and be
// upgraded.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates an Argon2idHasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with custom cost
// parameters. Zero fields fall back to the defaults.
func NewArgon2idHasherWithParams(p Argon2Params) *Argon2idHasher {
	if p.Time == 0 {
		p.Time = DefaultArgon2Params.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultArgon2Params.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultArgon2Params.Threads
	}
	if p.SaltLen <= 0 {
		p.SaltLen = DefaultArgon2Params.SaltLen
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultArgon2Params.KeyLen
	}
	return &Argon2idHasher{params: p}
}

// Hash produces an argon2id digest in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the digest.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2id(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if err == nil {
			return true, nil
		}
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	case isLegacySHA256(encodedHash):
		sum := sha256.Sum256([]byte(password))
		computed := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(encodedHash))) == 1, nil
	}

	parts := strings.Split(encodedHash, "$")
	if len(parts) == 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}
	return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
}

// NeedsUpgrade returns true if the digest is not argon2id.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	return !strings.HasPrefix(hash, "$argon2id$")
}

func verifyArgon2id(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	if threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}

	keyLen := len(expected)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func isLegacySHA256(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
