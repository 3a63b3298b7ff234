// Package httpfetch implements the shared, connection-pooled HTTP
// retriever used by every locator and by the downloader: bounded
// redirects with relative-Location resolution, Basic-auth synthesis from
// URL userinfo, and per-host concurrency and rate limiting.
package httpfetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/quay/zlog"

	"github.com/curdling/curdling"
)

var tracer = otel.Tracer("github.com/curdling/curdling/httpfetch")

const (
	// DefaultMaxPerHost is the default bound on concurrent connections to
	// a single host.
	DefaultMaxPerHost = 10
	// MaxRedirects is the number of redirect hops the pool will follow
	// before giving up. The pool issues at most MaxRedirects requests
	// total; the request that would be needed to follow the 21st hop
	// (the MaxRedirects+1'th request) is never issued.
	MaxRedirects = 20
)

// Result is the outcome of a successful Get: the final response and the
// URL it was fetched from, after following any redirects.
type Result struct {
	Response *http.Response
	FinalURL string
}

// Pool pools connections per host, bounding concurrency and optionally
// rate-limiting, and performs GET requests with bounded redirect
// following.
//
// The HTTP status of the response is never inspected here — callers
// interpret it, per the locator and downloader contracts.
type Pool struct {
	Client     *http.Client
	MaxPerHost int
	// RatePerSecond, if non-zero, bounds the rate of new requests per
	// host. Zero disables rate limiting.
	RatePerSecond rate.Limit

	mu       sync.Mutex
	sem      map[string]chan struct{}
	limiters map[string]*rate.Limiter
}

// NewPool constructs a Pool using client, or http.DefaultClient's
// transport settings if client is nil.
func NewPool(client *http.Client) *Pool {
	if client == nil {
		client = &http.Client{}
	}
	return &Pool{
		Client:     client,
		MaxPerHost: DefaultMaxPerHost,
		sem:        make(map[string]chan struct{}),
		limiters:   make(map[string]*rate.Limiter),
	}
}

func (p *Pool) hostSem(host string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.sem[host]
	if !ok {
		n := p.MaxPerHost
		if n <= 0 {
			n = DefaultMaxPerHost
		}
		ch = make(chan struct{}, n)
		p.sem[host] = ch
	}
	return ch
}

func (p *Pool) hostLimiter(host string) *rate.Limiter {
	if p.RatePerSecond <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(p.RatePerSecond, 1)
		p.limiters[host] = l
	}
	return l
}

// Get performs a GET against rawURL, merging in the supplied headers and
// following redirects (resolving relative Location values against the
// most recently fetched URL) up to MaxRedirects hops.
//
// If rawURL embeds "user:password@host" userinfo, a Basic-auth header is
// synthesized unless headers already sets Authorization.
func (p *Pool) Get(ctx context.Context, rawURL string, headers http.Header) (*Result, error) {
	ctx, span := tracer.Start(ctx, "httpfetch.Pool.Get", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	// Redirects are followed by the loop below, not by the client, so that
	// the hop bound and FinalURL are under the pool's control.
	client := *p.Client
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	current := rawURL
	var resp *http.Response
	for hop := 0; ; hop++ {
		if hop >= MaxRedirects {
			span.SetStatus(codes.Error, "too many redirects")
			return nil, &curdling.Error{Op: "httpfetch.Pool.Get", Kind: curdling.ErrTooManyRedirects,
				Message: fmt.Sprintf("exceeded %d redirects fetching %s", MaxRedirects, rawURL)}
		}

		u, err := url.Parse(current)
		if err != nil {
			span.RecordError(err)
			return nil, &curdling.Error{Op: "httpfetch.Pool.Get", Kind: curdling.ErrConnection, Inner: err}
		}

		sem := p.hostSem(u.Host)
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if l := p.hostLimiter(u.Host); l != nil {
			if err := l.Wait(ctx); err != nil {
				<-sem
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			<-sem
			return nil, &curdling.Error{Op: "httpfetch.Pool.Get", Kind: curdling.ErrConnection, Inner: err}
		}
		for k, vs := range headers {
			req.Header[k] = vs
		}
		if req.Header.Get("Authorization") == "" {
			if auth, ok := basicAuthHeader(u); ok {
				req.Header.Set("Authorization", auth)
			}
		}

		resp, err = client.Do(req)
		<-sem
		if err != nil {
			span.RecordError(err)
			return nil, &curdling.Error{Op: "httpfetch.Pool.Get", Kind: curdling.ErrConnection, Inner: err}
		}

		if !isRedirect(resp.StatusCode) {
			span.SetStatus(codes.Ok, "")
			return &Result{Response: resp, FinalURL: current}, nil
		}

		loc := resp.Header.Get("Location")
		resp.Body.Close()
		if loc == "" {
			// A redirect status with no Location is not actionable;
			// hand it back as-is rather than looping forever.
			return &Result{Response: resp, FinalURL: current}, nil
		}
		next, err := u.Parse(loc)
		if err != nil {
			span.RecordError(err)
			return nil, &curdling.Error{Op: "httpfetch.Pool.Get", Kind: curdling.ErrConnection, Inner: err}
		}
		zlog.Debug(ctx).Str("from", current).Str("to", next.String()).Msg("following redirect")
		current = next.String()
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// basicAuthHeader synthesizes a Basic-auth header value from a URL's
// userinfo component, if present.
func basicAuthHeader(u *url.URL) (string, bool) {
	if u.User == nil {
		return "", false
	}
	user := u.User.Username()
	pass, _ := u.User.Password()
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return "Basic " + token, true
}
