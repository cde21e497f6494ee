// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for operation metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Operation labels for operation metrics.
const (
	OpSignup         = "signup"
	OpLogin          = "login"
	OpLogout         = "logout"
	OpRequestReset   = "request_reset"
	OpConfirmReset   = "confirm_reset"
	OpAuthorize      = "authorize"
	OpPasswordRehash = "password_rehash"
)

// Operations counts auth service calls by operation and result.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hourlog_auth_operations_total",
		Help: "Total number of auth operations by operation and result",
	},
	[]string{"operation", "result"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
}

// RecordOperation increments the operation counter.
func RecordOperation(operation, result string) {
	Operations.WithLabelValues(operation, result).Inc()
}
