// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package logging configures slog for hourlog processes. Every record carries
// the service name and version, plus the OpenTelemetry trace and span ids when
// the context holds a span.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

type traceHandler struct {
	handler slog.Handler
	service string
	version string
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{handler: h.handler.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{handler: h.handler.WithGroup(name), service: h.service, version: h.version}
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, oops.Code("LOG_INVALID_LEVEL").With("level", s).Errorf("unknown log level %q", s)
	}
}

// Setup creates a logger writing to w, or os.Stderr when w is nil.
// format is "json" (the default when empty) or "text".
func Setup(service, version, format string, level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if format == FormatText {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}

	return slog.New(&traceHandler{handler: base, service: service, version: version})
}

// SetDefault installs a logger built from string settings as the slog default
// and returns it.
func SetDefault(service, version, format, level string) (*slog.Logger, error) {
	if format != "" && format != FormatJSON && format != FormatText {
		return nil, oops.Code("LOG_INVALID_FORMAT").With("format", format).Errorf("unknown log format %q", format)
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := Setup(service, version, format, lvl, nil)
	slog.SetDefault(logger)
	return logger, nil
}
