// Package supabase holds the REST clients for the Supabase backend:
// GoTrue auth, PostgREST tables, and Storage buckets. All three share
// one signing client that carries the project API key and a per-request
// bearer token.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

func New(baseURL, anonKey, serviceKey string) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	anonKey = strings.TrimSpace(anonKey)
	if baseURL == "" || anonKey == "" {
		return nil, fmt.Errorf("supabase url and anon key are required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase url: %s", baseURL)
	}
	return &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		anonKey:    anonKey,
		serviceKey: strings.TrimSpace(serviceKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// HasServiceKey reports whether admin (service-role) calls are possible.
func (c *Client) HasServiceKey() bool { return c.serviceKey != "" }

// APIError is a non-2xx response from any Supabase service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// request issues one call. token is the caller's bearer (falls back to
// the anon key, or the service key for admin calls when token is the
// sentinel ServiceRole).
const ServiceRole = "\x00service-role"

func (c *Client) request(ctx context.Context, method, path string, query url.Values, token string, headers map[string]string, body io.Reader) ([]byte, http.Header, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, nil, err
	}

	bearer := c.anonKey
	switch {
	case token == ServiceRole:
		if c.serviceKey == "" {
			return nil, nil, fmt.Errorf("service key not configured")
		}
		bearer = c.serviceKey
	case token != "":
		bearer = token
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("supabase read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, decodeAPIError(resp.StatusCode, raw)
	}
	return raw, resp.Header, nil
}

// decodeAPIError copes with the three error body shapes the services
// use: {"error","error_description"}, {"code","msg"}/{"message"}, and
// PostgREST's {"code","message","details"}.
func decodeAPIError(status int, raw []byte) *APIError {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
		Code             any    `json:"code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	e := &APIError{Status: status}
	switch {
	case body.ErrorDescription != "":
		e.Code, e.Message = body.Error, body.ErrorDescription
	case body.Msg != "":
		e.Message = body.Msg
	case body.Message != "":
		e.Message = body.Message
	case body.Error != "":
		e.Message = body.Error
	default:
		e.Message = strings.TrimSpace(string(raw))
	}
	if body.ErrorCode != "" {
		e.Code = body.ErrorCode
	} else if s, ok := body.Code.(string); ok && e.Code == "" {
		e.Code = s
	}
	return e
}
