package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
)

// handleStatus reports whether the world server answers and which
// Minecraft version it runs.
func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw)
		return
	}
	version, err := s.world.Version(r.Context())
	if err != nil {
		writeWorldError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":            "connected",
		"minecraft_version": version,
	})
}

// handleOperations lists recent world writes from the operations index.
func (s *Server) handleOperations(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw)
		return
	}
	if s.ops == nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrBackendUnavailable, "operations index disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "limit must be 1..1000")
			return
		}
		limit = n
	}
	ops, err := s.ops.Recent(limit)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	if ops == nil {
		ops = []protocol.OperationEvent{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"operations": ops, "total": len(ops)})
}

// recordOp indexes and broadcasts one operation.
func (s *Server) recordOp(ev protocol.OperationEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if s.ops != nil {
		s.ops.Record(ev)
	}
	s.bus.Publish(ev)
}
