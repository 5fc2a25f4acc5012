// ABOUTME: HTTP handlers for signup, login, session lookup, and logout
// ABOUTME: Issues the signed credential and binds it to the client as a cookie

package server

import (
	"errors"
	"net/http"

	"github.com/2389/stockdeck/internal/account"
	"github.com/2389/stockdeck/internal/auth"
)

type signupRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Secret      string `json:"secret"`
}

type loginRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
}

type userJSON struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// sessionResponse is {"user": {...}} or {"user": null}.
type sessionResponse struct {
	User *userJSON `json:"user"`
}

func userFromClaims(c auth.ClaimSet) *userJSON {
	return &userJSON{DisplayName: c.DisplayName, Email: c.Email}
}

// Auth attempt outcomes recorded in metrics.
const (
	outcomeSuccess      = "success"
	outcomeInvalidInput = "invalid_input"
	outcomeEmailTaken   = "email_taken"
	outcomeInvalidCreds = "invalid_credentials"
	outcomeError        = "error"
)

// allowAttempt applies the per-IP limiter, writing a 429 when it rejects.
func (s *Server) allowAttempt(w http.ResponseWriter, r *http.Request, op string) bool {
	if s.limiter.Allow(clientIP(r)) {
		return true
	}
	s.metrics.rateLimited.WithLabelValues(op).Inc()
	s.logger.Warn("auth attempt rate limited", "op", op, "remote_ip", clientIP(r))
	w.Header().Set("Retry-After", "60")
	s.sendJSONError(w, http.StatusTooManyRequests, codeRateLimited)
	return false
}

// handleSignup handles POST /auth/signup.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	const op = "signup"
	if !s.allowAttempt(w, r, op) {
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.recordAuth(op, outcomeInvalidInput)
		s.sendJSONError(w, http.StatusBadRequest, codeInvalidInput)
		return
	}

	claims, err := s.authn.Signup(r.Context(), req.DisplayName, req.Email, req.Secret)
	if err != nil {
		s.sendAuthError(w, op, err)
		return
	}

	if !s.attachCredential(w, r, op, claims) {
		return
	}

	s.metrics.recordAuth(op, outcomeSuccess)
	s.sendJSON(w, http.StatusCreated, sessionResponse{User: userFromClaims(claims)})
}

// handleLogin handles POST /auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "login"
	if !s.allowAttempt(w, r, op) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.recordAuth(op, outcomeInvalidInput)
		s.sendJSONError(w, http.StatusBadRequest, codeInvalidInput)
		return
	}

	claims, err := s.authn.Login(r.Context(), req.Email, req.Secret)
	if err != nil {
		s.sendAuthError(w, op, err)
		return
	}

	if !s.attachCredential(w, r, op, claims) {
		return
	}

	s.metrics.recordAuth(op, outcomeSuccess)
	s.sendJSON(w, http.StatusOK, sessionResponse{User: userFromClaims(claims)})
}

// handleSession handles GET /auth/session. A missing or failing credential
// is reported as {"user": null} with 401; a failing one is also cleared.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	token, ok := s.cookies.Extract(r)
	if !ok {
		s.sendJSON(w, http.StatusUnauthorized, sessionResponse{})
		return
	}

	claims, err := s.codec.Verify(token, s.now())
	if err != nil {
		s.logger.Debug("session credential rejected", "reason", auth.ReasonOf(err))
		s.cookies.Clear(w, r)
		s.sendJSON(w, http.StatusUnauthorized, sessionResponse{})
		return
	}

	s.sendJSON(w, http.StatusOK, sessionResponse{User: userFromClaims(claims)})
}

// handleLogout handles POST /auth/logout. It always succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.cookies.Clear(w, r)
	s.sendJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// attachCredential signs claims and sets the credential cookie. It writes a
// 500 and returns false if signing fails.
func (s *Server) attachCredential(w http.ResponseWriter, r *http.Request, op string, claims auth.ClaimSet) bool {
	token, err := s.codec.Issue(claims)
	if err != nil {
		s.logger.Error("failed to issue credential", "op", op, "error", err)
		s.metrics.recordAuth(op, outcomeError)
		s.sendJSONError(w, http.StatusInternalServerError, codeInternalError)
		return false
	}
	s.cookies.Attach(w, r, token)
	return true
}

// sendAuthError maps authenticator errors to status codes and bodies.
func (s *Server) sendAuthError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidInput):
		s.metrics.recordAuth(op, outcomeInvalidInput)
		s.sendJSONError(w, http.StatusBadRequest, codeInvalidInput)
	case errors.Is(err, account.ErrEmailTaken):
		s.metrics.recordAuth(op, outcomeEmailTaken)
		s.sendJSONError(w, http.StatusBadRequest, codeEmailTaken)
	case errors.Is(err, account.ErrInvalidCredentials):
		s.metrics.recordAuth(op, outcomeInvalidCreds)
		s.sendJSONError(w, http.StatusUnauthorized, codeInvalidCredentials)
	default:
		s.logger.Error("auth request failed", "op", op, "error", err)
		s.metrics.recordAuth(op, outcomeError)
		s.sendJSONError(w, http.StatusInternalServerError, codeInternalError)
	}
}
