// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import "time"

// SetClock replaces the registry clock.
func (r *ResetRegistry) SetClock(now func() time.Time) { r.now = now }

// SetCodeGenerator replaces the reset code source.
func (r *ResetRegistry) SetCodeGenerator(gen func() (string, error)) { r.generate = gen }

// SetTokenGenerator replaces the session token source.
func (r *SessionRegistry) SetTokenGenerator(gen func() (string, string, error)) { r.generate = gen }
