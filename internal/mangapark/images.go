package mangapark

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Dead CDN hosts and the mirrors that still serve the same paths. The site
// rotates image hosts and leaves stale references behind on cached pages.
var hostRewrites = map[string]string{
	"xcdn-209.mangapark.net": "xfs-209.mangapark.net",
	"xcdn-224.mangapark.net": "xfs-224.mangapark.net",
	"s1.mpcdn.net":           "s1.mpimg.net",
	"s2.mpcdn.net":           "s2.mpimg.net",
}

var reLooseImage = regexp.MustCompile(`https?://[^\s"'\\]+\.(?:jpe?g|png|webp)(?:\?[^\s"'\\]*)?`)

// ReaderImages collects the image URLs of a reader page, DOM first, then
// loose URLs inside embedded scripts, deduplicated in page order.
func (c *Client) ReaderImages(ctx context.Context, chapterURL string) ([]string, error) {
	doc, body, err := c.fetchDOM(ctx, chapterURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	out := []string{}
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || strings.HasPrefix(u, "data:") {
			return
		}
		if strings.HasPrefix(u, "//") {
			u = "https:" + u
		}
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	doc.Find("img[src], img[data-src]").Each(func(_ int, img *goquery.Selection) {
		if v, ok := img.Attr("data-src"); ok {
			add(v)
			return
		}
		if v, ok := img.Attr("src"); ok {
			add(v)
		}
	})

	doc.Find("source[srcset]").Each(func(_ int, src *goquery.Selection) {
		v, _ := src.Attr("srcset")
		for _, part := range strings.Split(v, ",") {
			fields := strings.Fields(strings.TrimSpace(part))
			if len(fields) > 0 {
				add(fields[0])
			}
		}
	})

	for _, m := range reLooseImage.FindAllString(body, -1) {
		add(m)
	}

	c.log.Debugf("reader page yielded %d image URLs\n", len(out))

	return out, nil
}

// FixImageURL rewrites a broken image URL to its working mirror. Reports
// whether anything changed.
func FixImageURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, false
	}

	changed := false

	if u.Scheme == "http" {
		u.Scheme = "https"
		changed = true
	}

	if repl, ok := hostRewrites[strings.ToLower(u.Host)]; ok {
		u.Host = repl
		changed = true
	}

	return u.String(), changed
}

// FixImageURLs maps FixImageURL over the list, returning the rewritten list
// and how many URLs were repaired.
func FixImageURLs(urls []string) ([]string, int) {
	out := make([]string, len(urls))
	fixed := 0

	for i, u := range urls {
		v, changed := FixImageURL(u)
		out[i] = v
		if changed {
			fixed++
		}
	}

	return out, fixed
}
