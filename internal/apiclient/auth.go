package apiclient

import (
	"context"
	"net/http"
)

// Login exchanges email and password for a token and profile.
// A 401 here is a rejected login, not a session teardown.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	in := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, loginPath, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile behind the bound credentials.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.getJSON(ctx, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
