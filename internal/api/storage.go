package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
	"github.com/natea/minecraft-mcp-gdpc/internal/supabase"
)

const maxUploadBytes = 32 << 20

// handleStorage serves /v1/storage/{bucket} (list) and
// /v1/storage/{bucket}/{key} (download, upload, delete). Objects of an
// authenticated user live under a user_{id}/ prefix so users cannot
// touch each other's files.
func (s *Server) handleStorage(rw http.ResponseWriter, r *http.Request) {
	if !s.requireBackend(rw) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/storage/")
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "no such storage route")
		return
	}
	if bucket != s.blueprintBucket && bucket != s.assetBucket {
		writeError(rw, http.StatusForbidden, protocol.ErrForbidden, "unknown bucket "+bucket)
		return
	}
	user := userFrom(r)
	if key == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(rw, http.MethodGet)
			return
		}
		s.listObjects(rw, r, user, bucket)
		return
	}
	key = scopedKey(user, key)
	switch r.Method {
	case http.MethodGet:
		content, contentType, err := s.backend.Download(r.Context(), user.Token, bucket, key)
		if err != nil {
			writeBackendError(rw, err)
			return
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		rw.Header().Set("Content-Type", contentType)
		rw.WriteHeader(http.StatusOK)
		rw.Write(content)
	case http.MethodPut:
		content, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxUploadBytes))
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "body too large or unreadable")
			return
		}
		if len(content) == 0 {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "empty body")
			return
		}
		if err := s.backend.Upload(r.Context(), user.Token, bucket, key, content, r.Header.Get("Content-Type")); err != nil {
			writeBackendError(rw, err)
			return
		}
		writeJSON(rw, http.StatusCreated, map[string]any{"bucket": bucket, "key": key, "size": len(content)})
	case http.MethodDelete:
		if err := s.backend.RemoveObjects(r.Context(), user.Token, bucket, []string{key}); err != nil {
			writeBackendError(rw, err)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(rw, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) listObjects(rw http.ResponseWriter, r *http.Request, user authedUser, bucket string) {
	q := r.URL.Query()
	limit, err1 := queryInt(q.Get("limit"), 100)
	offset, err2 := queryInt(q.Get("offset"), 0)
	if err1 != nil || err2 != nil || limit <= 0 || offset < 0 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "limit and offset must be non-negative integers")
		return
	}
	prefix := scopedKey(user, q.Get("prefix"))
	objects, err := s.backend.ListObjects(r.Context(), user.Token, bucket, prefix, limit, offset)
	if err != nil {
		writeBackendError(rw, err)
		return
	}
	if objects == nil {
		objects = []supabase.ObjectInfo{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"objects": objects})
}

// scopedKey confines object keys of an authenticated user to their own
// namespace. Without a backend user there is no scoping.
func scopedKey(user authedUser, key string) string {
	if user.ID == "" {
		return key
	}
	return "user_" + user.ID + "/" + strings.TrimPrefix(key, "/")
}
