// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package memory provides process-local implementations of the auth
// storage interfaces. State does not survive a restart.
package memory
