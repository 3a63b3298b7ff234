package finder

import (
	"context"
	"errors"
	"testing"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/requirement"
)

type fakeLocator struct {
	base string
	dist curdling.Distribution
	ok   bool
	err  error
}

func (f *fakeLocator) GetProject(ctx context.Context, name string) (map[string]curdling.Distribution, error) {
	return nil, f.err
}
func (f *fakeLocator) BaseURL() string { return f.base }
func (f *fakeLocator) Scheme() string  { return "legacy" }
func (f *fakeLocator) Equal(other curdling.Locator) bool {
	o, ok := other.(*fakeLocator)
	return ok && o.base == f.base
}

type fakeLocating struct {
	dist curdling.Distribution
	ok   bool
	err  error
}

func (f *fakeLocating) Locate(ctx context.Context, req requirement.Requirement) (curdling.Distribution, bool, error) {
	return f.dist, f.ok, f.err
}

func TestHandleLinkRequirementSkipsLocator(t *testing.T) {
	f := &Finder{Locator: &fakeLocating{err: errors.New("should not be called")}}
	found, err := f.Handle(context.Background(), "https://example.com/foo-1.0.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	if found.URL != "https://example.com/foo-1.0.tar.gz" {
		t.Errorf("URL = %q", found.URL)
	}
}

func TestHandleSuccessIncludesLocatorURL(t *testing.T) {
	loc := &fakeLocator{base: "http://example.com/simple"}
	dist := curdling.NewDistribution("foo", "1.0", "http://example.com/simple/foo/", "http://example.com/simple/foo/foo-1.0.tar.gz", loc)
	f := &Finder{Locator: &fakeLocating{dist: dist, ok: true}}

	found, err := f.Handle(context.Background(), "foo (>= 1.0)")
	if err != nil {
		t.Fatal(err)
	}
	if found.URL != dist.DownloadURL {
		t.Errorf("URL = %q, want %q", found.URL, dist.DownloadURL)
	}
	if found.LocatorURL != loc.base {
		t.Errorf("LocatorURL = %q, want %q", found.LocatorURL, loc.base)
	}
}

func TestHandleNotFoundIsReportable(t *testing.T) {
	f := &Finder{Locator: &fakeLocating{ok: false}}
	_, err := f.Handle(context.Background(), "foo (>= 1.0)")
	if !errors.Is(err, curdling.ErrReportable) {
		t.Errorf("expected ErrReportable, got %v", err)
	}
}
