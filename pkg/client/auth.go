package client

import (
	"context"
	"net/http"
)

type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type LoginRequest struct {
	// Identifier is an email address or a username
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Register creates an account and stores the returned session
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	return c.startSession(ctx, "/auth/register", req)
}

// Login authenticates and stores the returned session
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	return c.startSession(ctx, "/auth/login", req)
}

func (c *Client) startSession(ctx context.Context, path string, body interface{}) (*Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodPost, path, body, &session); err != nil {
		return nil, err
	}
	if err := c.tokens.Save(&session); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Purge()
	}
	return &session, nil
}

// Logout revokes the refresh token and forgets the session. The local
// session is cleared even when the API call fails.
func (c *Client) Logout(ctx context.Context) error {
	session, ok := c.tokens.Load()
	if !ok {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"refresh_token": session.RefreshToken}, nil)
	if clearErr := c.tokens.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	if c.cache != nil {
		c.cache.Purge()
	}
	return err
}

// Me returns the signed-in account
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}
