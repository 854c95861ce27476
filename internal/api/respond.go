package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/natea/minecraft-mcp-gdpc/internal/gdmc"
	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
	"github.com/natea/minecraft-mcp-gdpc/internal/supabase"
)

// errorEnvelope is the error body every endpoint returns:
// {"error":{"code","message","details"}}.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, message string) {
	writeErrorDetails(rw, status, code, message, nil)
}

func writeErrorDetails(rw http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(rw, status, errorEnvelope{Error: errorDetail{Code: code, Message: message, Details: details}})
}

// writeWorldError maps gdmc client failures onto the error ladder.
func writeWorldError(rw http.ResponseWriter, err error) {
	var se *gdmc.StatusError
	switch {
	case errors.Is(err, gdmc.ErrUnavailable):
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrWorldUnavailable, err.Error())
	case errors.As(err, &se):
		if se.Status == http.StatusNotFound {
			writeError(rw, http.StatusNotFound, protocol.ErrNotFound, se.Body)
			return
		}
		writeErrorDetails(rw, http.StatusBadGateway, protocol.ErrWorldUnavailable, "world server rejected the request",
			map[string]any{"upstream_status": se.Status, "upstream_body": se.Body})
	default:
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	}
}

// writeBackendError maps Supabase failures onto the error ladder.
func writeBackendError(rw http.ResponseWriter, err error) {
	var ae *supabase.APIError
	switch {
	case errors.Is(err, supabase.ErrNotFound):
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case errors.Is(err, supabase.ErrInvalidToken):
		writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, err.Error())
	case errors.Is(err, supabase.ErrInvalidCredentials):
		writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, err.Error())
	case errors.Is(err, supabase.ErrEmailExists):
		writeError(rw, http.StatusConflict, protocol.ErrEmailExists, err.Error())
	case errors.Is(err, supabase.ErrWeakPassword):
		writeError(rw, http.StatusBadRequest, protocol.ErrWeakPassword, err.Error())
	case errors.As(err, &ae):
		switch ae.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			writeError(rw, ae.Status, protocol.ErrForbidden, ae.Message)
		case http.StatusConflict:
			writeError(rw, http.StatusConflict, protocol.ErrConflict, ae.Message)
		case http.StatusNotFound:
			writeError(rw, http.StatusNotFound, protocol.ErrNotFound, ae.Message)
		default:
			writeErrorDetails(rw, http.StatusBadGateway, protocol.ErrBackendUnavailable, "backend rejected the request",
				map[string]any{"upstream_status": ae.Status, "upstream_message": ae.Message})
		}
	default:
		writeError(rw, http.StatusBadGateway, protocol.ErrBackendUnavailable, err.Error())
	}
}

func methodNotAllowed(rw http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		rw.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(rw, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "method not allowed")
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 32<<20))
	if err := dec.Decode(v); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
