// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hourlog/hourlog/internal/auth"
)

var tracer = otel.Tracer("hourlog/web")

const maxRequestIDLength = 128

type ctxKeyRequestID struct{}
type ctxKeyRoute struct{}
type ctxKeySession struct{}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

// SessionFromContext returns the session resolved by RequireSession.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(ctxKeySession{}).(*auth.Session)
	return s, ok
}

// routeInfo is filled in by the router once a route matches, so outer
// middleware can label by template instead of raw path.
type routeInfo struct {
	template string
}

func routeLabel(ctx context.Context) string {
	if ri, ok := ctx.Value(ctxKeyRoute{}).(*routeInfo); ok && ri.template != "" {
		return ri.template
	}
	return "unmatched"
}

func recordRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ri, ok := r.Context().Value(ctxKeyRoute{}).(*routeInfo); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					ri.template = tmpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rr *responseRecorder) WriteHeader(status int) {
	if rr.status == 0 {
		rr.status = status
	}
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(p []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	n, err := rr.ResponseWriter.Write(p)
	rr.bytes += n
	return n, err //nolint:wrapcheck // ResponseWriter passthrough
}

func (rr *responseRecorder) statusCode() int {
	if rr.status == 0 {
		return http.StatusOK
	}
	return rr.status
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, id)
		ctx = context.WithValue(ctx, ctxKeyRoute{}, &routeInfo{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "http "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("http.request_id", RequestID(r.Context())),
			))
		defer span.End()

		rr := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rr, r.WithContext(ctx))

		status := rr.statusCode()
		span.SetAttributes(
			attribute.String("http.route", routeLabel(ctx)),
			attribute.Int("http.response.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}

// instrument logs each request and records its metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rr, r)

		elapsed := time.Since(start)
		route := routeLabel(r.Context())
		status := rr.statusCode()
		if s.opts.Metrics != nil {
			s.opts.Metrics.ObserveRequest(route, r.Method, status, elapsed)
		}

		level := slogLevelFor(status)
		s.logger.Log(r.Context(), level, "request complete",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", rr.bytes,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", RequestID(r.Context()),
		)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// cors answers preflights and decorates responses for allowed origins.
// Requests without an Origin header pass through untouched.
func (s *Server) cors(next http.Handler) http.Handler {
	allowHeaders := strings.Join([]string{"Content-Type", SessionHeader, RequestIDHeader}, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || len(s.origins) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		if !s.originAllowed(origin) {
			if preflight {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)

		if preflight {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, g := range s.origins {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// RequireSession rejects requests whose X-Session-Id does not resolve to a
// live session. On success the principal is attached with auth.WithPrincipal.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.svc.Authorize(r.Context(), r.Header.Get(SessionHeader))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), session.Principal())
		ctx = context.WithValue(ctx, ctxKeySession{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
