package util

import (
	"bufio"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
)

type HTTPClientOptions struct {
	Timeout     time.Duration
	UserAgent   string
	Cookie      string
	CookieFile  string
	Transport   http.RoundTripper
	Cloudflare  bool
	DebugLogger interface {
		Debugf(string, ...any)
	}
}

// NewHTTPClient builds the shared client: cookie/UA injection on every
// request and, for the site itself, the Cloudflare bypass transport.
func NewHTTPClient(opts HTTPClientOptions) (*http.Client, error) {
	jar, _ := cookiejar.New(nil)

	var baseTransport http.RoundTripper
	if opts.Transport != nil {
		baseTransport = opts.Transport
	} else {
		baseTransport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DisableCompression:  false,
			MaxIdleConns:        100,
			MaxConnsPerHost:     100,
			MaxIdleConnsPerHost: 100,
			ForceAttemptHTTP2:   true,
		}
	}

	if opts.Cloudflare {
		baseTransport = cloudflarebp.AddCloudFlareByPass(baseTransport)
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: roundTripper{
			base:         baseTransport,
			ua:           opts.UserAgent,
			cookieHeader: joinCookies(opts.Cookie, opts.CookieFile),
			log:          opts.DebugLogger,
		},
		Jar: jar,
	}

	if opts.DebugLogger != nil {
		opts.DebugLogger.Debugf("HTTP client initialized (timeout=%s, ua=%q, cloudflare=%t)\n",
			opts.Timeout, opts.UserAgent, opts.Cloudflare)
	}

	return client, nil
}

type roundTripper struct {
	base         http.RoundTripper
	ua           string
	cookieHeader string
	log          interface{ Debugf(string, ...any) }
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.ua != "" {
		req.Header.Set("User-Agent", rt.ua)
	}

	if rt.cookieHeader != "" {
		if req.Header.Get("Cookie") == "" {
			req.Header.Set("Cookie", rt.cookieHeader)
		}
	}

	if rt.log != nil {
		rt.log.Debugf("HTTP %s %s\n", req.Method, req.URL.String())
	}

	return rt.base.RoundTrip(req)
}

func joinCookies(inline, file string) string {
	s := strings.TrimSpace(inline)
	if file != "" {
		if b, err := os.ReadFile(file); err == nil {
			// first non-empty line
			sc := bufio.NewScanner(strings.NewReader(string(b)))
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line != "" {
					if s == "" {
						s = line
					} else {
						s = s + "; " + line
					}
					break
				}
			}
		}
	}

	return s
}

func PickUserAgent(override string) string {
	if override != "" {
		return override
	}

	return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
}
