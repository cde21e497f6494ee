// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package web

import (
	"net/http"
	"time"

	"github.com/hourlog/hourlog/internal/auth"
)

// resetRequestedMessage is returned whether or not the account exists.
const resetRequestedMessage = "If the account exists, a reset code has been issued"

type signupRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
}

type signupResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

type resetRequest struct {
	Username string `json:"username"`
}

type resetRequestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type resetConfirmRequest struct {
	Username    string `json:"username"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type meResponse struct {
	Username  string    `json:"username"`
	UserID    string    `json:"userId"`
	LoginTime time.Time `json:"loginTime"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.svc.Signup(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signupResponse{Success: true, Username: user.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeError(w, r, invalidInput("Username and password required"))
		return
	}

	result, err := s.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Success: true, SessionID: result.SessionID, Username: result.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	//nolint:errcheck // Logout never fails
	s.svc.Logout(r.Context(), r.Header.Get(SessionHeader))
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.CurrentSession(r.Context(), r.Header.Get(SessionHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: status.Authenticated, Username: status.Username})
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Username == "" {
		s.writeError(w, r, invalidInput("Username required"))
		return
	}

	code, err := s.svc.RequestReset(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := resetRequestResponse{Success: true, Message: resetRequestedMessage}
	if s.opts.ExposeResetCode {
		resp.Code = code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Username == "" || req.Code == "" || req.NewPassword == "" {
		s.writeError(w, r, invalidInput("Username, code and new password required"))
		return
	}

	if err := s.svc.ConfirmReset(r.Context(), req.Username, req.Code, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Not authenticated", Code: auth.CodeNotAuthenticated})
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Username:  session.Username,
		UserID:    session.UserID.String(),
		LoginTime: session.LoginTime,
	})
}
