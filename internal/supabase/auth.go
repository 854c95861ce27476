package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Typed auth failures the API layer maps onto its error ladder.
var (
	ErrEmailExists        = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too weak")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// User is a GoTrue user record; the username lives in user metadata.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    string         `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Username pulls the username out of user metadata, empty if unset.
func (u User) Username() string {
	if s, ok := u.UserMetadata["username"].(string); ok {
		return s
	}
	return ""
}

// Session is an authenticated GoTrue session.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}

// SignUp registers a user, storing the username in user metadata. When
// email confirmation is on, GoTrue returns a user with no session;
// Session.AccessToken is empty in that case.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"username": username},
	}
	body, _ := json.Marshal(payload)
	raw, _, err := c.request(ctx, http.MethodPost, "/auth/v1/signup", nil, "", jsonHeaders, bytes.NewReader(body))
	if err != nil {
		return Session{}, classifyAuthErr(err)
	}

	// The response is either a bare user (confirmation pending) or a
	// full session.
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode signup response: %w", err)
	}
	if s.AccessToken == "" {
		var u User
		if err := json.Unmarshal(raw, &u); err == nil && u.ID != "" {
			s.User = u
		}
	}
	return s, nil
}

// SignInWithPassword exchanges email+password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}
	body, _ := json.Marshal(payload)
	q := url.Values{}
	q.Set("grant_type", "password")
	raw, _, err := c.request(ctx, http.MethodPost, "/auth/v1/token", q, "", jsonHeaders, bytes.NewReader(body))
	if err != nil {
		return Session{}, classifyAuthErr(err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode token response: %w", err)
	}
	if s.AccessToken == "" || s.User.ID == "" {
		return Session{}, ErrInvalidCredentials
	}
	return s, nil
}

// AuthUser resolves a bearer token to its user, failing with
// ErrInvalidToken when GoTrue rejects it.
func (c *Client) AuthUser(ctx context.Context, token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrInvalidToken
	}
	raw, _, err := c.request(ctx, http.MethodGet, "/auth/v1/user", nil, token, nil, nil)
	if err != nil {
		var ae *APIError
		if errors.As(err, &ae) && (ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	if u.ID == "" {
		return User{}, ErrInvalidToken
	}
	return u, nil
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func classifyAuthErr(err error) error {
	var ae *APIError
	if !errors.As(err, &ae) {
		return err
	}
	msg := strings.ToLower(ae.Message)
	switch {
	case ae.Code == "user_already_exists" || strings.Contains(msg, "already registered"):
		return fmt.Errorf("%w: %s", ErrEmailExists, ae.Message)
	case ae.Code == "weak_password" || strings.Contains(msg, "password should be"):
		return fmt.Errorf("%w: %s", ErrWeakPassword, ae.Message)
	case ae.Status == http.StatusBadRequest || ae.Status == http.StatusUnauthorized:
		if strings.Contains(msg, "invalid login credentials") || ae.Code == "invalid_credentials" || ae.Code == "invalid_grant" {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, ae.Message)
		}
	}
	return err
}
