// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/pkg/errutil"
)

// Codes produced by the HTTP layer itself.
const (
	CodeBodyTooLarge = "REQUEST_TOO_LARGE"
	CodeInternal     = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// publicError is what a client sees for a given code.
type publicError struct {
	status  int
	message string
}

// publicErrors maps error codes to responses. AUTH_INVALID_INPUT is absent:
// its messages come from validation and are shown as is.
var publicErrors = map[string]publicError{
	auth.CodeDuplicateUsername:  {http.StatusConflict, "Username already exists"},
	auth.CodeDuplicateEmail:     {http.StatusConflict, "Email already registered"},
	auth.CodeInvalidCredentials: {http.StatusUnauthorized, "Invalid username or password"},
	auth.CodeNotAuthenticated:   {http.StatusUnauthorized, "Not authenticated"},
	auth.CodeResetNoToken:       {http.StatusBadRequest, "No active reset code for this user"},
	auth.CodeResetMismatch:      {http.StatusBadRequest, "Invalid reset code"},
	auth.CodeResetExpired:       {http.StatusGone, "Reset code has expired"},
	auth.CodeStoreUnavailable:   {http.StatusServiceUnavailable, "Service temporarily unavailable"},
	CodeBodyTooLarge:            {http.StatusRequestEntityTooLarge, "Request body too large"},
}

// writeError renders err as {"error","code"}. Unknown failures become a
// generic 500 and are logged with their full context.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errutil.Code(err)

	if code == auth.CodeInvalidInput {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: inputMessage(err), Code: code})
		return
	}
	if pe, ok := publicErrors[code]; ok {
		if pe.status >= http.StatusInternalServerError {
			errutil.LogError(s.logger.With("request_id", RequestID(r.Context())), "request failed", err)
		}
		writeJSON(w, pe.status, errorResponse{Error: pe.message, Code: code})
		return
	}

	errutil.LogError(s.logger.With("request_id", RequestID(r.Context())), "request failed", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Code: CodeInternal})
}

// inputMessage returns the message of the innermost oops error.
func inputMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if msg := oopsErr.Error(); msg != "" {
			return msg
		}
	}
	return "Invalid input"
}

func invalidInput(msg string) error {
	return oops.Code(auth.CodeInvalidInput).Errorf("%s", msg)
}

// decodeJSON reads one JSON value from the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return invalidInput("Request body required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return oops.Code(CodeBodyTooLarge).With("limit", tooLarge.Limit).Wrap(err)
		}
		return invalidInput("Invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

func slogLevelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
