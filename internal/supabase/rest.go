package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrNotFound reports a row that doesn't exist (or isn't visible to the
// caller under row-level security).
var ErrNotFound = errors.New("row not found")

// Template is one row of the templates table.
type Template struct {
	ID            string   `json:"id,omitempty"`
	OwnerID       string   `json:"owner_id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	BlueprintPath string   `json:"blueprint_path,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

// TemplateVersion is one row of template_versions. At most one version
// per template is active at a time.
type TemplateVersion struct {
	ID            string `json:"id,omitempty"`
	TemplateID    string `json:"template_id"`
	Version       int    `json:"version,omitempty"`
	BlueprintPath string `json:"blueprint_path,omitempty"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// Favorite is one row of user_favorites.
type Favorite struct {
	UserID     string `json:"user_id"`
	TemplateID string `json:"template_id"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// TemplateFilter narrows ListTemplates.
type TemplateFilter struct {
	Search string
	Tags   []string
	Limit  int
	Offset int
}

var preferRepresentation = map[string]string{
	"Content-Type": "application/json",
	"Prefer":       "return=representation",
}

func (c *Client) ListTemplates(ctx context.Context, token string, f TemplateFilter) ([]Template, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	if f.Search != "" {
		pat := "*" + f.Search + "*"
		q.Set("or", fmt.Sprintf("(title.ilike.%s,description.ilike.%s)", pat, pat))
	}
	if len(f.Tags) > 0 {
		q.Set("tags", "cs.{"+strings.Join(f.Tags, ",")+"}")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	q.Set("limit", strconv.Itoa(limit))
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	raw, _, err := c.request(ctx, http.MethodGet, "/rest/v1/templates", q, token, nil, nil)
	if err != nil {
		return nil, err
	}
	var out []Template
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return out, nil
}

func (c *Client) CreateTemplate(ctx context.Context, token string, t Template) (Template, error) {
	body, _ := json.Marshal(t)
	raw, _, err := c.request(ctx, http.MethodPost, "/rest/v1/templates", nil, token, preferRepresentation, bytes.NewReader(body))
	if err != nil {
		return Template{}, err
	}
	return firstRow[Template](raw)
}

func (c *Client) GetTemplate(ctx context.Context, token, id string) (Template, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)
	raw, _, err := c.request(ctx, http.MethodGet, "/rest/v1/templates", q, token, nil, nil)
	if err != nil {
		return Template{}, err
	}
	return firstRow[Template](raw)
}

func (c *Client) UpdateTemplate(ctx context.Context, token, id string, patch map[string]any) (Template, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	body, _ := json.Marshal(patch)
	raw, _, err := c.request(ctx, http.MethodPatch, "/rest/v1/templates", q, token, preferRepresentation, bytes.NewReader(body))
	if err != nil {
		return Template{}, err
	}
	return firstRow[Template](raw)
}

func (c *Client) DeleteTemplate(ctx context.Context, token, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	raw, _, err := c.request(ctx, http.MethodDelete, "/rest/v1/templates", q, token, preferRepresentation, nil)
	if err != nil {
		return err
	}
	if _, err := firstRow[Template](raw); err != nil {
		return err
	}
	return nil
}

func (c *Client) ListTemplateVersions(ctx context.Context, token, templateID string) ([]TemplateVersion, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("template_id", "eq."+templateID)
	q.Set("order", "version.desc")
	raw, _, err := c.request(ctx, http.MethodGet, "/rest/v1/template_versions", q, token, nil, nil)
	if err != nil {
		return nil, err
	}
	var out []TemplateVersion
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode versions: %w", err)
	}
	return out, nil
}

func (c *Client) CreateTemplateVersion(ctx context.Context, token string, v TemplateVersion) (TemplateVersion, error) {
	body, _ := json.Marshal(v)
	raw, _, err := c.request(ctx, http.MethodPost, "/rest/v1/template_versions", nil, token, preferRepresentation, bytes.NewReader(body))
	if err != nil {
		return TemplateVersion{}, err
	}
	return firstRow[TemplateVersion](raw)
}

// ActivateTemplateVersion flips versionID active after deactivating the
// template's other versions, so at most one stays active.
func (c *Client) ActivateTemplateVersion(ctx context.Context, token, templateID, versionID string) (TemplateVersion, error) {
	q := url.Values{}
	q.Set("template_id", "eq."+templateID)
	q.Set("id", "neq."+versionID)
	body, _ := json.Marshal(map[string]any{"is_active": false})
	if _, _, err := c.request(ctx, http.MethodPatch, "/rest/v1/template_versions", q, token, preferRepresentation, bytes.NewReader(body)); err != nil {
		return TemplateVersion{}, err
	}

	q = url.Values{}
	q.Set("id", "eq."+versionID)
	q.Set("template_id", "eq."+templateID)
	body, _ = json.Marshal(map[string]any{"is_active": true})
	raw, _, err := c.request(ctx, http.MethodPatch, "/rest/v1/template_versions", q, token, preferRepresentation, bytes.NewReader(body))
	if err != nil {
		return TemplateVersion{}, err
	}
	return firstRow[TemplateVersion](raw)
}

func (c *Client) AddFavorite(ctx context.Context, token, userID, templateID string) (Favorite, error) {
	body, _ := json.Marshal(Favorite{UserID: userID, TemplateID: templateID})
	raw, _, err := c.request(ctx, http.MethodPost, "/rest/v1/user_favorites", nil, token, preferRepresentation, bytes.NewReader(body))
	if err != nil {
		return Favorite{}, err
	}
	return firstRow[Favorite](raw)
}

func (c *Client) RemoveFavorite(ctx context.Context, token, userID, templateID string) error {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("template_id", "eq."+templateID)
	raw, _, err := c.request(ctx, http.MethodDelete, "/rest/v1/user_favorites", q, token, preferRepresentation, nil)
	if err != nil {
		return err
	}
	if _, err := firstRow[Favorite](raw); err != nil {
		return err
	}
	return nil
}

func (c *Client) ListFavorites(ctx context.Context, token, userID string) ([]Favorite, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	raw, _, err := c.request(ctx, http.MethodGet, "/rest/v1/user_favorites", q, token, nil, nil)
	if err != nil {
		return nil, err
	}
	var out []Favorite
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return out, nil
}

// firstRow unwraps PostgREST's array responses; zero rows means the
// target row doesn't exist (or RLS hides it).
func firstRow[T any](raw []byte) (T, error) {
	var rows []T
	var zero T
	if err := json.Unmarshal(raw, &rows); err != nil {
		return zero, fmt.Errorf("decode row: %w", err)
	}
	if len(rows) == 0 {
		return zero, ErrNotFound
	}
	return rows[0], nil
}
