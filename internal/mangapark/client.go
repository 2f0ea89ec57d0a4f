// Package mangapark talks to the site: identity discovery from a page,
// the internal follows API, and reader-page image repair.
package mangapark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/exporter"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
)

const DefaultOrigin = "https://mangapark.net"

type Client struct {
	client      *http.Client
	origin      string
	identityURL string
	pageSize    int
	log         interface{ Debugf(string, ...any) }
}

func NewClient(c *http.Client, origin, identityURL string, log interface{ Debugf(string, ...any) }) *Client {
	if origin == "" {
		origin = DefaultOrigin
	}
	if identityURL == "" {
		identityURL = origin
	}
	if log == nil {
		log = noopLog{}
	}

	return &Client{
		client:      c,
		origin:      strings.TrimRight(origin, "/"),
		identityURL: identityURL,
		pageSize:    50,
		log:         log,
	}
}

type noopLog struct{}

func (noopLog) Debugf(string, ...any) {}

// pageBody is the follows API page. Pointer fields feed the shape check:
// a 2xx body missing the pagination fields is BAD_RESPONSE, not a zero page.
type pageBody struct {
	Page  *int        `json:"page"`
	Pages *int        `json:"pages"`
	Total *int        `json:"total"`
	Items *[]pageItem `json:"items"`
}

type pageItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	LastRead    string `json:"last_read"`
	LastReadURL string `json:"last_read_url"`
}

func validShape(b *pageBody) bool {
	return b != nil && b.Pages != nil && b.Items != nil
}

// FetchPage retrieves one page of the owner's follow list.
func (c *Client) FetchPage(ctx context.Context, owner string, page int) (*follows.Page, error) {
	target := fmt.Sprintf("%s/api/member/%s/follows?page=%d&limit=%d", c.origin, url.PathEscape(owner), page, c.pageSize)

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &exporter.StatusError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, err
	}

	var pb pageBody
	if err := json.Unmarshal(body, &pb); err != nil {
		c.log.Debugf("follows page %d: undecodable body: %v\n", page, err)
		return nil, fmt.Errorf("follows page %d: %w", page, exporter.ErrBadShape)
	}
	if !validShape(&pb) {
		return nil, fmt.Errorf("follows page %d: %w", page, exporter.ErrBadShape)
	}

	captured := follows.Timestamp(time.Now())
	out := &follows.Page{Pages: *pb.Pages}
	if pb.Page != nil {
		out.Page = *pb.Page
	}
	if pb.Total != nil {
		out.Total = *pb.Total
	}

	for _, it := range *pb.Items {
		out.Items = append(out.Items, follows.FollowItem{
			Title:          it.Title,
			SourceURL:      c.resolve(it.URL),
			StableID:       it.ID,
			LastReadMarker: it.LastRead,
			LastReadURL:    c.resolve(it.LastReadURL),
			CapturedAt:     captured,
		})
	}

	return out, nil
}

func (c *Client) resolve(href string) string {
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}

	b, err := url.Parse(c.origin)
	if err != nil {
		return href
	}

	return b.ResolveReference(u).String()
}
