package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Login exchanges credentials for a token. The client keeps using the new
// token for later requests.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" {
		return LoginResult{}, errors.New("username is required")
	}
	if creds.Password == "" {
		return LoginResult{}, errors.New("password is required")
	}

	var res LoginResult
	if err := c.do(ctx, request{method: http.MethodPost, route: "/auth/login", path: "/auth/login", body: creds}, &res); err != nil {
		return LoginResult{}, err
	}
	if res.Token == "" {
		return LoginResult{}, errors.New("login response did not include a token")
	}
	c.SetToken(res.Token)
	return res, nil
}

// Logout ends the server-side session and forgets the token locally.
func (c *Client) Logout(ctx context.Context) error {
	var ok bool
	err := c.do(ctx, request{method: http.MethodPost, route: "/auth/logout", path: "/auth/logout", auth: true}, &ok)
	c.SetToken("")
	return err
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, request{method: http.MethodGet, route: "/auth/me", path: "/auth/me", auth: true}, &u)
	return u, err
}
