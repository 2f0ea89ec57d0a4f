package mangadex

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Follow adds the manga to the authenticated user's follows. An expired
// session is refreshed once and the call retried.
func (c *Client) Follow(ctx context.Context, mangaID string) error {
	err := c.follow(ctx, mangaID)
	if !errors.Is(err, ErrNotAuthenticated) {
		return err
	}

	if rerr := c.RefreshToken(ctx); rerr != nil {
		return fmt.Errorf("session expired: %w", rerr)
	}

	return c.follow(ctx, mangaID)
}

func (c *Client) follow(ctx context.Context, mangaID string) error {
	tok, err := c.token()
	if err != nil {
		return err
	}

	_, err = c.postJSON(ctx, "/manga/"+url.PathEscape(mangaID)+"/follow", map[string]string{}, tok.Session)

	return err
}
