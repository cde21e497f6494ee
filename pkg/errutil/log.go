// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package errutil holds helpers for working with oops-coded errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at ERROR level. For oops errors the code and context
// are emitted as separate attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, Attrs(err)...)
}

// LogWarn is LogError at WARN level. Used for best-effort failures that do
// not abort the surrounding operation.
func LogWarn(logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, Attrs(err)...)
}

// Attrs returns slog key/value pairs describing err.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
