// Package locator implements the two concrete catalog back-ends
// (scraping an HTML simple-index, querying a JSON API) and the
// aggregating locator that fans a requirement lookup out across several
// of either kind.
package locator

import (
	"context"
	"io"
	"mime"
	"net/http"
	"runtime"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/httpfetch"
	"github.com/curdling/curdling/pkg/wheelname"
)

var tracer = otel.Tracer("github.com/curdling/curdling/locator")

// ScrapingLocator targets an HTML simple-index: one directory listing
// page per package name, linking to its distribution files.
type ScrapingLocator struct {
	HTTP *httpfetch.Pool
	Base string
	// MaxSubvisits bounds how many levels of nested index pages below the
	// package page are sub-fetched (see DESIGN.md Open Question 1).
	MaxSubvisits int

	mu       sync.Mutex
	visited  map[string]struct{}
	notFound []string
}

// NewScrapingLocator builds a ScrapingLocator with the documented
// single-level subvisit default.
func NewScrapingLocator(pool *httpfetch.Pool, base string) *ScrapingLocator {
	return &ScrapingLocator{HTTP: pool, Base: base, MaxSubvisits: 1}
}

func (s *ScrapingLocator) BaseURL() string { return s.Base }
func (s *ScrapingLocator) Scheme() string  { return "legacy" }

func (s *ScrapingLocator) Equal(other curdling.Locator) bool {
	o, ok := other.(*ScrapingLocator)
	return ok && o.Base == s.Base
}

// GetProject fetches and parses the simple-index page for name, returning
// a version-keyed catalog.
//
// Transport failures (connection errors, redirect loops) are returned as
// an error so the Aggregating locator can swallow them and move to the
// next source. A page that is fetched but reports a non-200 status
// ("missing content" per spec) instead records name in NotFound and
// returns an empty, non-error catalog.
func (s *ScrapingLocator) GetProject(ctx context.Context, name string) (map[string]curdling.Distribution, error) {
	ctx, span := tracer.Start(ctx, "ScrapingLocator.GetProject", trace.WithAttributes(attribute.String("package", name)))
	defer span.End()

	res, err := s.HTTP.Get(ctx, s.indexURL(name), nil)
	if err != nil {
		return nil, err
	}
	if res.Response.StatusCode != http.StatusOK {
		res.Response.Body.Close()
		s.mu.Lock()
		s.notFound = append(s.notFound, name)
		s.mu.Unlock()
		return map[string]curdling.Distribution{}, nil
	}

	body, err := decodeHTMLBody(res.Response)
	res.Response.Body.Close()
	if err != nil {
		return nil, err
	}
	links := extractLinks(body)
	if s.MaxSubvisits > 0 {
		links = append(links, s.subvisitLinks(ctx, links, 0)...)
	}

	catalog := make(map[string]curdling.Distribution)
	for _, href := range links {
		if !isPlatformCompatible(href) {
			continue
		}
		version, err := wheelname.Version(href)
		if err != nil {
			continue
		}
		if _, exists := catalog[version]; exists {
			continue // first occurrence wins
		}
		catalog[version] = curdling.NewDistribution(name, version, s.indexURL(name), s.resolveLink(name, href), s)
	}
	return catalog, nil
}

func (s *ScrapingLocator) indexURL(name string) string {
	base := strings.TrimRight(s.Base, "/")
	return base + "/" + name + "/"
}

func (s *ScrapingLocator) resolveLink(name, href string) string {
	if strings.Contains(href, "://") {
		return href
	}
	return strings.TrimRight(s.indexURL(name), "/") + "/" + strings.TrimLeft(href, "/")
}

// subvisitLinks performs one additional fetch per nested-index link
// (one ending in "/", not yet visited this process) up to MaxSubvisits
// levels deep, returning whatever further links it turns up. Failures are
// swallowed per link: a broken sub-page should not fail the whole
// GetProject call.
func (s *ScrapingLocator) subvisitLinks(ctx context.Context, links []string, depth int) []string {
	if depth >= s.MaxSubvisits {
		return nil
	}
	var out []string
	for _, href := range links {
		if !strings.HasSuffix(href, "/") {
			continue
		}
		s.mu.Lock()
		if s.visited == nil {
			s.visited = make(map[string]struct{})
		}
		_, already := s.visited[href]
		s.visited[href] = struct{}{}
		s.mu.Unlock()
		if already {
			continue
		}

		res, err := s.HTTP.Get(ctx, s.resolveLink("", href), nil)
		if err != nil {
			continue
		}
		if res.Response.StatusCode != http.StatusOK {
			res.Response.Body.Close()
			continue
		}
		body, err := decodeHTMLBody(res.Response)
		res.Response.Body.Close()
		if err != nil {
			continue
		}
		sub := extractLinks(body)
		out = append(out, sub...)
		out = append(out, s.subvisitLinks(ctx, sub, depth+1)...)
	}
	return out
}

// decodeHTMLBody reads the response body fully, decoding gzip/deflate
// Content-Encoding and then the charset declared in Content-Type,
// defaulting to utf-8 and falling back to latin-1 on a charset the
// registry doesn't recognize.
func decodeHTMLBody(resp *http.Response) (string, error) {
	r, err := httpfetch.DecodeBody(resp)
	if err != nil {
		return "", err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	enc := charsetFromContentType(resp.Header.Get("Content-Type"))
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw), nil
	}
	return string(decoded), nil
}

func charsetFromContentType(contentType string) encoding.Encoding {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if cs := params["charset"]; cs != "" {
				if enc, err := htmlindex.Get(cs); err == nil {
					return enc
				}
				return charmap.ISO8859_1
			}
		}
	}
	if enc, err := htmlindex.Get("utf-8"); err == nil {
		return enc
	}
	return charmap.ISO8859_1
}

func extractLinks(body string) []string {
	var links []string
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key == "href" && attr.Val != "" {
					links = append(links, attr.Val)
				}
			}
		}
	}
}

// isPlatformCompatible reports whether a wheel filename's platform tag is
// either universal ("any") or matches the running host: the tag contains
// runtime.GOOS, or the host is Linux and the tag is a manylinux tag.
// Source distributions (no platform tag segment recognizable as such) are
// always considered compatible.
func isPlatformCompatible(filename string) bool {
	if !wheelname.IsWheel(filename) {
		return true
	}
	base := strings.TrimSuffix(filename, ".whl")
	parts := strings.Split(base, "-")
	if len(parts) < 5 {
		return true
	}
	platformTag := parts[len(parts)-1]
	if platformTag == "any" {
		return true
	}
	return strings.Contains(platformTag, runtime.GOOS) ||
		(runtime.GOOS == "linux" && strings.HasPrefix(platformTag, "manylinux"))
}

// NotFound returns the per-locator list of names whose index page came
// back with a non-200 status, for get_servers_to_update-style reporting.
// Transport failures are returned as errors and are not recorded here.
func (s *ScrapingLocator) NotFound() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.notFound))
	copy(out, s.notFound)
	return out
}
