// ABOUTME: JSON request decoding and response helpers shared by HTTP handlers
// ABOUTME: Error bodies are always {"error": "<Code>"}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Error codes returned in {"error": ...} bodies.
const (
	codeEmailTaken         = "EmailTaken"
	codeInvalidInput       = "InvalidInput"
	codeInvalidCredentials = "InvalidCredentials"
	codeInternalError      = "InternalError"
	codeRateLimited        = "RateLimited"
	codeInvalidSymbol      = "InvalidSymbol"
	codeSymbolNotFound     = "SymbolNotFound"
	codeUpstreamFailure    = "UpstreamFailure"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

var errInvalidBody = errors.New("invalid JSON body")

// sendJSON writes v as a JSON response with the given status.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, code string) {
	s.sendJSON(w, status, map[string]string{"error": code})
}

// decodeJSON parses a bounded JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errInvalidBody
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	return nil
}
