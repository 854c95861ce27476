package api

import (
	"net/http"
	"strings"

	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
	"github.com/natea/minecraft-mcp-gdpc/internal/supabase"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

func (s *Server) handleRegister(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(rw, http.MethodPost)
		return
	}
	if !s.requireBackend(rw) {
		return
	}
	var req registerRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "email must be a valid address")
		return
	}
	if len(req.Password) < 8 {
		writeError(rw, http.StatusBadRequest, protocol.ErrWeakPassword, "password must be at least 8 characters")
		return
	}
	sess, err := s.backend.SignUp(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		writeBackendError(rw, err)
		return
	}
	if sess.AccessToken == "" {
		// Email confirmation pending: the user exists but no session
		// is issued until the address is verified.
		writeJSON(rw, http.StatusAccepted, map[string]any{
			"user":                 sess.User,
			"confirmation_pending": true,
		})
		return
	}
	writeJSON(rw, http.StatusCreated, sessionResponse(sess))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(rw, http.MethodPost)
		return
	}
	if !s.requireBackend(rw) {
		return
	}
	var req loginRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "email and password are required")
		return
	}
	sess, err := s.backend.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		writeBackendError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, sessionResponse(sess))
}

func (s *Server) handleAuthUser(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw, http.MethodGet)
		return
	}
	if !s.requireBackend(rw) {
		return
	}
	token := bearerToken(r)
	if token == "" {
		writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, "missing bearer token")
		return
	}
	u, err := s.backend.AuthUser(r.Context(), token)
	if err != nil {
		writeBackendError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) requireBackend(rw http.ResponseWriter) bool {
	if s.backend == nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrBackendUnavailable, "no auth backend configured")
		return false
	}
	return true
}

func sessionResponse(sess supabase.Session) map[string]any {
	return map[string]any{
		"access_token": sess.AccessToken,
		"token_type":   sess.TokenType,
		"expires_in":   sess.ExpiresIn,
		"user":         sess.User,
	}
}
