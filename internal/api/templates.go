package api

import (
	"net/http"
	"strings"

	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
	"github.com/natea/minecraft-mcp-gdpc/internal/supabase"
)

// handleTemplates serves the /v1/templates collection.
func (s *Server) handleTemplates(rw http.ResponseWriter, r *http.Request) {
	if !s.requireBackend(rw) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.listTemplates(rw, r)
	case http.MethodPost:
		s.createTemplate(rw, r)
	default:
		methodNotAllowed(rw, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listTemplates(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := supabase.TemplateFilter{Search: q.Get("q")}
	if tags := q.Get("tags"); tags != "" {
		f.Tags = strings.Split(tags, ",")
	}
	limit, err1 := queryInt(q.Get("limit"), 0)
	offset, err2 := queryInt(q.Get("offset"), 0)
	if err1 != nil || err2 != nil || limit < 0 || offset < 0 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "limit and offset must be non-negative integers")
		return
	}
	f.Limit, f.Offset = limit, offset
	templates, err := s.backend.ListTemplates(r.Context(), userFrom(r).Token, f)
	if err != nil {
		writeBackendError(rw, err)
		return
	}
	if templates == nil {
		templates = []supabase.Template{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"templates": templates, "total": len(templates)})
}

func (s *Server) createTemplate(rw http.ResponseWriter, r *http.Request) {
	var t supabase.Template
	if !decodeBody(rw, r, &t) {
		return
	}
	if strings.TrimSpace(t.Title) == "" {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "title is required")
		return
	}
	user := userFrom(r)
	t.ID = ""
	t.OwnerID = user.ID
	created, err := s.backend.CreateTemplate(r.Context(), user.Token, t)
	if err != nil {
		writeBackendError(rw, err)
		return
	}
	writeJSON(rw, http.StatusCreated, created)
}

// handleTemplateSubtree routes /v1/templates/{id} and its children:
//
//	/v1/templates/{id}
//	/v1/templates/{id}/versions
//	/v1/templates/{id}/versions/{vid}/activate
//	/v1/templates/{id}/favorite
func (s *Server) handleTemplateSubtree(rw http.ResponseWriter, r *http.Request) {
	if !s.requireBackend(rw) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/templates/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || parts[0] == "" {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "no such template route")
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1:
		s.templateByID(rw, r, id)
	case len(parts) == 2 && parts[1] == "versions":
		s.templateVersions(rw, r, id)
	case len(parts) == 4 && parts[1] == "versions" && parts[3] == "activate":
		s.activateVersion(rw, r, id, parts[2])
	case len(parts) == 2 && parts[1] == "favorite":
		s.templateFavorite(rw, r, id)
	default:
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "no such template route")
	}
}

func (s *Server) templateByID(rw http.ResponseWriter, r *http.Request, id string) {
	user := userFrom(r)
	switch r.Method {
	case http.MethodGet:
		t, err := s.backend.GetTemplate(r.Context(), user.Token, id)
		if err != nil {
			writeBackendError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, t)
	case http.MethodPatch:
		var patch map[string]any
		if !decodeBody(rw, r, &patch) {
			return
		}
		// Ownership and identity columns are not client-writable.
		delete(patch, "id")
		delete(patch, "owner_id")
		delete(patch, "created_at")
		if len(patch) == 0 {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "no updatable fields in body")
			return
		}
		t, err := s.backend.UpdateTemplate(r.Context(), user.Token, id, patch)
		if err != nil {
			writeBackendError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, t)
	case http.MethodDelete:
		if err := s.backend.DeleteTemplate(r.Context(), user.Token, id); err != nil {
			writeBackendError(rw, err)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(rw, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (s *Server) templateVersions(rw http.ResponseWriter, r *http.Request, id string) {
	user := userFrom(r)
	switch r.Method {
	case http.MethodGet:
		versions, err := s.backend.ListTemplateVersions(r.Context(), user.Token, id)
		if err != nil {
			writeBackendError(rw, err)
			return
		}
		if versions == nil {
			versions = []supabase.TemplateVersion{}
		}
		writeJSON(rw, http.StatusOK, map[string]any{"versions": versions})
	case http.MethodPost:
		var v supabase.TemplateVersion
		if !decodeBody(rw, r, &v) {
			return
		}
		if v.BlueprintPath == "" {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "blueprint_path is required")
			return
		}
		v.ID = ""
		v.TemplateID = id
		created, err := s.backend.CreateTemplateVersion(r.Context(), user.Token, v)
		if err != nil {
			writeBackendError(rw, err)
			return
		}
		writeJSON(rw, http.StatusCreated, created)
	default:
		methodNotAllowed(rw, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) activateVersion(rw http.ResponseWriter, r *http.Request, templateID, versionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(rw, http.MethodPost)
		return
	}
	v, err := s.backend.ActivateTemplateVersion(r.Context(), userFrom(r).Token, templateID, versionID)
	if err != nil {
		writeBackendError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, v)
}

func (s *Server) templateFavorite(rw http.ResponseWriter, r *http.Request, templateID string) {
	user := userFrom(r)
	if user.ID == "" {
		writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, "favorites need an authenticated user")
		return
	}
	switch r.Method {
	case http.MethodPut:
		fav, err := s.backend.AddFavorite(r.Context(), user.Token, user.ID, templateID)
		if err != nil {
			writeBackendError(rw, err)
			return
		}
		writeJSON(rw, http.StatusCreated, fav)
	case http.MethodDelete:
		if err := s.backend.RemoveFavorite(r.Context(), user.Token, user.ID, templateID); err != nil {
			writeBackendError(rw, err)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(rw, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleMyFavorites(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw, http.MethodGet)
		return
	}
	if !s.requireBackend(rw) {
		return
	}
	user := userFrom(r)
	if user.ID == "" {
		writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, "favorites need an authenticated user")
		return
	}
	favs, err := s.backend.ListFavorites(r.Context(), user.Token, user.ID)
	if err != nil {
		writeBackendError(rw, err)
		return
	}
	if favs == nil {
		favs = []supabase.Favorite{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"favorites": favs})
}
