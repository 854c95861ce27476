package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
)

// ObjectInfo is one entry from a bucket listing.
type ObjectInfo struct {
	Name      string         `json:"name"`
	ID        string         `json:"id,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Upload stores content at key in bucket, overwriting an existing
// object with the same key.
func (c *Client) Upload(ctx context.Context, token, bucket, key string, content []byte, contentType string) error {
	key = normalizeObjectKey(key)
	if key == "" {
		return fmt.Errorf("empty object key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Type": contentType,
		"x-upsert":     "true",
	}
	_, _, err := c.request(ctx, http.MethodPost, "/storage/v1/object/"+bucket+"/"+key, nil, token, headers, bytes.NewReader(content))
	return err
}

// Download fetches the object at key, ErrNotFound when absent.
func (c *Client) Download(ctx context.Context, token, bucket, key string) ([]byte, string, error) {
	key = normalizeObjectKey(key)
	if key == "" {
		return nil, "", fmt.Errorf("empty object key")
	}
	raw, hdr, err := c.request(ctx, http.MethodGet, "/storage/v1/object/"+bucket+"/"+key, nil, token, nil, nil)
	if err != nil {
		var ae *APIError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return nil, "", fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, "", err
	}
	return raw, hdr.Get("Content-Type"), nil
}

// ListObjects lists bucket entries under prefix.
func (c *Client) ListObjects(ctx context.Context, token, bucket, prefix string, limit, offset int) ([]ObjectInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	payload := map[string]any{
		"prefix": normalizeObjectKey(prefix),
		"limit":  limit,
		"offset": offset,
	}
	body, _ := json.Marshal(payload)
	raw, _, err := c.request(ctx, http.MethodPost, "/storage/v1/object/list/"+bucket, nil, token, jsonHeaders, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var out []ObjectInfo
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode object list: %w", err)
	}
	return out, nil
}

// RemoveObjects deletes the given keys from bucket.
func (c *Client) RemoveObjects(ctx context.Context, token, bucket string, keys []string) error {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = normalizeObjectKey(k); k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return fmt.Errorf("no object keys given")
	}
	body, _ := json.Marshal(map[string]any{"prefixes": clean})
	_, _, err := c.request(ctx, http.MethodDelete, "/storage/v1/object/"+bucket, nil, token, jsonHeaders, bytes.NewReader(body))
	return err
}

// normalizeObjectKey flattens separators and rejects traversal so a
// caller-supplied key can never escape its bucket prefix.
func normalizeObjectKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ""
	}
	clean := path.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == "." || strings.HasPrefix(clean, "../") {
		return ""
	}
	return clean
}
