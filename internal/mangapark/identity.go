package mangapark

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Identity struct {
	ID   string
	Name string
}

var (
	reMemberHref = regexp.MustCompile(`^/(?:u|member|user)/(\d+)`)
	reScriptUser = regexp.MustCompile(`\b(?:userId|user_id|uid)["']?\s*[:=]\s*["']?(\d+)`)
	reScriptName = regexp.MustCompile(`\b(?:userName|user_name|uname)["']?\s*[:=]\s*["']([^"']+)["']`)
)

// ResolveOwner satisfies the engine's PageSource: the discovered user id,
// or an error when the page shows no logged-in user.
func (c *Client) ResolveOwner(ctx context.Context) (string, error) {
	id, err := c.DiscoverIdentity(ctx, c.identityURL)
	if err != nil {
		return "", err
	}

	return id.ID, nil
}

// DiscoverIdentity finds the acting user on the given page: first from the
// DOM (account menu links to the member profile), then from embedded script
// content. No hit on either path means nobody is logged in.
func (c *Client) DiscoverIdentity(ctx context.Context, pageURL string) (Identity, error) {
	doc, body, err := c.fetchDOM(ctx, pageURL)
	if err != nil {
		return Identity{}, err
	}

	if id := identityFromDOM(doc); id.ID != "" {
		c.log.Debugf("identity from DOM: %s (%s)\n", id.ID, id.Name)
		return id, nil
	}

	if id := identityFromScripts(body); id.ID != "" {
		c.log.Debugf("identity from embedded script: %s\n", id.ID)
		return id, nil
	}

	return Identity{}, fmt.Errorf("no logged-in user on %s", pageURL)
}

func identityFromDOM(doc *goquery.Document) Identity {
	var id Identity

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := reMemberHref.FindStringSubmatch(href)
		if m == nil {
			return true
		}

		id = Identity{ID: m[1], Name: strings.TrimSpace(a.Text())}

		return false
	})

	if id.ID == "" {
		if v, ok := doc.Find("body[data-user-id]").Attr("data-user-id"); ok && v != "" && v != "0" {
			id = Identity{ID: v}
		}
	}

	return id
}

func identityFromScripts(body string) Identity {
	m := reScriptUser.FindStringSubmatch(body)
	if m == nil || m[1] == "0" {
		return Identity{}
	}

	id := Identity{ID: m[1]}
	if n := reScriptName.FindStringSubmatch(body); n != nil {
		id.Name = n[1]
	}

	return id
}

func (c *Client) fetchDOM(ctx context.Context, target string) (*goquery.Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, target)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, "", err
	}

	body := string(raw)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, "", err
	}

	return doc, body, nil
}
