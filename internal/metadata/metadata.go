// Package metadata resolves an article URL into its title, author and domain.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Metadata describes the source of a quote. Empty fields are unknown.
type Metadata struct {
	Title  string
	Author string
	Domain string
}

// Fetcher resolves metadata for a URL. On failure it still returns whatever
// could be derived without the network (the domain) together with the error.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Metadata, error)
}

var (
	// ErrNotHTML is returned when the response is not an HTML document.
	ErrNotHTML = errors.New("response is not html")
	// ErrInvalidURL is returned when no request can be built for the URL.
	ErrInvalidURL = errors.New("invalid url")
)

// StatusError reports a non-200 response.
type StatusError struct {
	Code   int
	Domain string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.Domain)
}

// Config controls the HTTP fetcher.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// HTTPFetcher fetches the page and reads Open Graph, Twitter card and standard meta tags from its head.
type HTTPFetcher struct {
	client    *http.Client
	maxBody   int64
	userAgent string
	logger    *slog.Logger
}

// NewHTTPFetcher creates a fetcher with its own http.Client.
func NewHTTPFetcher(cfg Config, logger *slog.Logger) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		maxBody:   maxBody,
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "metadata"),
	}
}

// Fetch downloads rawURL and extracts its metadata. Domain is always filled for a parseable URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	md := Metadata{Domain: Domain(rawURL)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return md, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return md, fmt.Errorf("failed to fetch %s: %w", md.Domain, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.DebugContext(ctx, "Error closing response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return md, &StatusError{Code: resp.StatusCode, Domain: md.Domain}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || (mediaType != "text/html" && mediaType != "application/xhtml+xml") {
			return md, fmt.Errorf("%w: %s", ErrNotHTML, ct)
		}
	}

	head := parseHead(io.LimitReader(resp.Body, f.maxBody))
	md.Title = head.title()
	md.Author = head.author()

	f.logger.DebugContext(ctx, "Fetched metadata", "domain", md.Domain, "has_title", md.Title != "", "has_author", md.Author != "")
	return md, nil
}

// Domain returns the host of rawURL without port and leading "www.", or "" if it does not parse.
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// headTags collects the candidate values found before the document body.
type headTags struct {
	titleTag string
	meta     map[string]string
}

func (h headTags) title() string {
	return firstNonEmpty(h.meta["og:title"], h.meta["twitter:title"], h.titleTag)
}

func (h headTags) author() string {
	return firstNonEmpty(h.meta["author"], h.meta["article:author"], h.meta["byline"])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			return v
		}
	}
	return ""
}

// parseHead tokenizes r until the body starts and records <title> and <meta> values.
// Keys are the lower-cased property or name attribute; the first occurrence wins.
func parseHead(r io.Reader) headTags {
	h := headTags{meta: make(map[string]string)}
	z := html.NewTokenizer(r)
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return h
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Body:
				return h
			case atom.Title:
				inTitle = h.titleTag == ""
			case atom.Meta:
				var key, content string
				for _, a := range tok.Attr {
					switch strings.ToLower(a.Key) {
					case "property", "name":
						if key == "" {
							key = strings.ToLower(strings.TrimSpace(a.Val))
						}
					case "content":
						content = a.Val
					}
				}
				if key != "" && content != "" {
					if _, seen := h.meta[key]; !seen {
						h.meta[key] = content
					}
				}
			}
		case html.TextToken:
			if inTitle {
				h.titleTag += string(z.Text())
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.DataAtom == atom.Title {
				inTitle = false
			} else if tok.DataAtom == atom.Head {
				return h
			}
		}
	}
}
