// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is wrapped by stores when a uniqueness constraint rejects a write.
var ErrDuplicate = errors.New("duplicate")

// Error codes carried by oops errors returned from this package and its
// store implementations. The HTTP layer maps them to status codes.
const (
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
	CodeDuplicateUsername  = "AUTH_DUPLICATE_USERNAME"
	CodeDuplicateEmail     = "AUTH_DUPLICATE_EMAIL"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeNotAuthenticated   = "AUTH_NOT_AUTHENTICATED"
	CodeResetNoToken       = "RESET_NO_TOKEN"
	CodeResetExpired       = "RESET_EXPIRED"
	CodeResetMismatch      = "RESET_MISMATCH"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
)
