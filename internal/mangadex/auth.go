package mangadex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
)

var ErrNotAuthenticated = errors.New("not logged in to the catalog")

// Token is the ephemeral session pair. It lives only in the local store
// area, never in config files.
type Token struct {
	Session   string `json:"session"`
	Refresh   string `json:"refresh"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
}

type authBody struct {
	Result string `json:"result"`
	Token  struct {
		Session string `json:"session"`
		Refresh string `json:"refresh"`
	} `json:"token"`
}

// Login exchanges credentials for a token and persists it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{"username": username, "password": password}

	body, err := c.postJSON(ctx, "/auth/login", payload, "")
	if err != nil {
		return err
	}

	return c.saveToken(body)
}

// RefreshToken trades the refresh token for a fresh session token.
func (c *Client) RefreshToken(ctx context.Context) error {
	tok, err := c.token()
	if err != nil {
		return err
	}

	body, err := c.postJSON(ctx, "/auth/refresh", map[string]string{"token": tok.Refresh}, "")
	if err != nil {
		return err
	}

	return c.saveToken(body)
}

// Logout invalidates the session server-side (best effort) and drops the
// stored token.
func (c *Client) Logout(ctx context.Context) error {
	if tok, err := c.token(); err == nil {
		if _, err := c.postJSON(ctx, "/auth/logout", map[string]string{}, tok.Session); err != nil {
			c.log.Debugf("logout call failed: %v\n", err)
		}
	}

	return c.store.Delete(store.KeyAuthToken)
}

// Status reports whether a token is stored.
func (c *Client) Status() bool {
	_, err := c.token()

	return err == nil
}

func (c *Client) token() (*Token, error) {
	var tok Token
	ok, err := c.store.Get(store.KeyAuthToken, &tok)
	if err != nil {
		return nil, err
	}
	if !ok || tok.Session == "" {
		return nil, ErrNotAuthenticated
	}

	return &tok, nil
}

func (c *Client) saveToken(body []byte) error {
	var ab authBody
	if err := json.Unmarshal(body, &ab); err != nil {
		return fmt.Errorf("auth: decode: %w", err)
	}
	if ab.Token.Session == "" {
		return errors.New("auth: no token in response")
	}

	now := time.Now()
	tok := Token{
		Session:   ab.Token.Session,
		Refresh:   ab.Token.Refresh,
		IssuedAt:  now.UTC().Format(time.RFC3339),
		ExpiresAt: now.Add(15 * time.Minute).UTC().Format(time.RFC3339),
	}

	return c.store.Set(store.KeyAuthToken, &tok)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, bearer string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}

	return body, nil
}
