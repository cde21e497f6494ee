// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package auth implements accounts, sessions, and password reset for hourlog.
//
// # Storage
//
// Users live in a CredentialStore (see the memory and postgres
// subpackages). Sessions and reset codes live in a KV (see the memory and
// redis subpackages) through SessionRegistry and ResetRegistry. Only
// hashes of session tokens and reset codes are written to a KV.
//
// # Service
//
// Service coordinates the flows:
//   - Signup - validates and stores a user; does not log in
//   - Login - verifies the password and opens a session
//   - Logout - idempotent session removal
//   - RequestReset / ConfirmReset - one-time 6-character codes valid for 15 minutes
//   - Authorize - resolves a session id for protected handlers
//
// Errors carry oops codes (Code* constants) that the HTTP layer maps to
// status codes.
package auth
