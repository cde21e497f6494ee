// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import (
	"context"
	"log/slog"
	"time"
)

// CodeNotifier delivers a reset code to the account owner out of band.
type CodeNotifier interface {
	NotifyResetCode(ctx context.Context, user *User, code string, expiresIn time.Duration) error
}

// LogNotifier writes reset codes to the log. It is the default delivery
// channel for deployments without mail.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyResetCode logs the code at INFO.
func (n *LogNotifier) NotifyResetCode(ctx context.Context, user *User, code string, expiresIn time.Duration) error {
	n.logger.InfoContext(ctx, "password reset code issued",
		"username", user.Username,
		"code", code,
		"expires_in", expiresIn.String())
	return nil
}
