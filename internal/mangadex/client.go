// Package mangadex is the catalog side of the migration: title search for
// the auto-matcher, plus the authenticated follow action.
package mangadex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/similarity"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
)

const DefaultAPI = "https://api.mangadex.org"

type Client struct {
	client *http.Client
	base   string
	store  *store.Store
	log    interface{ Debugf(string, ...any) }
}

func NewClient(c *http.Client, base string, st *store.Store, log interface{ Debugf(string, ...any) }) *Client {
	if base == "" {
		base = DefaultAPI
	}
	if log == nil {
		log = noopLog{}
	}

	return &Client{client: c, base: strings.TrimRight(base, "/"), store: st, log: log}
}

type noopLog struct{}

func (noopLog) Debugf(string, ...any) {}

// RateLimitError carries the server's retry hint from a 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

type searchBody struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title     map[string]string   `json:"title"`
			AltTitles []map[string]string `json:"altTitles"`
		} `json:"attributes"`
	} `json:"data"`
}

// Search queries the catalog for the title and returns candidates with
// their alternate titles, in the API's relevance order.
func (c *Client) Search(ctx context.Context, title string) ([]similarity.Candidate, error) {
	q := url.Values{}
	q.Set("title", title)
	q.Set("limit", "10")

	req, err := http.NewRequestWithContext(ctx, "GET", c.base+"/manga?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search: HTTP %d", resp.StatusCode)
	}

	var body searchBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4*1024*1024)).Decode(&body); err != nil {
		return nil, fmt.Errorf("search: decode: %w", err)
	}

	out := make([]similarity.Candidate, 0, len(body.Data))
	for _, d := range body.Data {
		cand := similarity.Candidate{ID: d.ID, Title: pickTitle(d.Attributes.Title)}
		for _, alt := range d.Attributes.AltTitles {
			for _, v := range alt {
				if v != "" {
					cand.AltTitles = append(cand.AltTitles, v)
				}
			}
		}
		out = append(out, cand)
	}

	return out, nil
}

// pickTitle prefers the English title, then romanized Japanese, then
// whatever is there.
func pickTitle(titles map[string]string) string {
	for _, lang := range []string{"en", "ja-ro", "ja"} {
		if t := titles[lang]; t != "" {
			return t
		}
	}

	for _, t := range titles {
		if t != "" {
			return t
		}
	}

	return ""
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
	}

	return 5 * time.Second
}
