package locator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/httpfetch"
	"github.com/curdling/curdling/pkg/wheelname"
)

// APILocator targets a JSON catalog endpoint: GET base/api/<name> returns
// every known distribution for that package.
type APILocator struct {
	HTTP *httpfetch.Pool
	Base string

	mu       sync.Mutex
	notFound []string
}

// NewAPILocator builds an APILocator rooted at base.
func NewAPILocator(pool *httpfetch.Pool, base string) *APILocator {
	return &APILocator{HTTP: pool, Base: base}
}

func (a *APILocator) BaseURL() string { return a.Base }
func (a *APILocator) Scheme() string  { return "legacy" }

func (a *APILocator) Equal(other curdling.Locator) bool {
	o, ok := other.(*APILocator)
	return ok && o.Base == a.Base
}

type apiURL struct {
	URL string `json:"url"`
}

type apiEntry struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	URLs    []apiURL `json:"urls"`
}

// GetProject fetches base/api/<name> and parses the JSON catalog.
//
// A non-200 response records name in NotFound and returns an empty
// catalog, per spec: only transport-level failures (returned as an error
// here) are left for the Aggregating locator to swallow.
func (a *APILocator) GetProject(ctx context.Context, name string) (map[string]curdling.Distribution, error) {
	ctx, span := tracer.Start(ctx, "APILocator.GetProject", trace.WithAttributes(attribute.String("package", name)))
	defer span.End()

	res, err := a.HTTP.Get(ctx, a.apiURL(name), nil)
	if err != nil {
		return nil, err
	}
	defer res.Response.Body.Close()

	if res.Response.StatusCode != http.StatusOK {
		a.mu.Lock()
		a.notFound = append(a.notFound, name)
		a.mu.Unlock()
		return map[string]curdling.Distribution{}, nil
	}

	body, err := io.ReadAll(res.Response.Body)
	if err != nil {
		return nil, &curdling.Error{Op: "APILocator.GetProject", Kind: curdling.ErrConnection, Inner: err}
	}

	var entries []apiEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &curdling.Error{Op: "APILocator.GetProject", Kind: curdling.ErrConnection, Inner: err}
	}

	catalog := make(map[string]curdling.Distribution)
	for _, e := range entries {
		url := preferredURL(e.URLs)
		if url == "" {
			continue
		}
		catalog[e.Version] = curdling.NewDistribution(e.Name, e.Version, a.apiURL(name), url, a)
	}
	return catalog, nil
}

// preferredURL picks the first wheel-formatted URL, falling back to the
// first URL of any kind.
func preferredURL(urls []apiURL) string {
	var fallback string
	for _, u := range urls {
		if fallback == "" {
			fallback = u.URL
		}
		if wheelname.IsWheel(u.URL) {
			return u.URL
		}
	}
	return fallback
}

func (a *APILocator) apiURL(name string) string {
	base := strings.TrimRight(a.Base, "/")
	return base + "/api/" + name
}

// NotFound returns the package names this locator could not resolve to a
// 200 response, for get_servers_to_update-style reporting.
func (a *APILocator) NotFound() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.notFound))
	copy(out, a.notFound)
	return out
}

// ServersToUpdate returns the deduplicated union of NotFound across a set
// of locators: the external notifier uses this to decide which remote
// curdling server should be told about packages nobody could locate.
func ServersToUpdate(locators ...interface{ NotFound() []string }) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range locators {
		for _, name := range l.NotFound() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
