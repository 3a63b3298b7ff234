// Package finder adapts an Aggregating locator lookup into the Maestro
// data-slot record the Downloader consumes.
package finder

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/requirement"
)

var tracer = otel.Tracer("github.com/curdling/curdling/finder")

// Locating is the capability Finder needs from the aggregating locator:
// resolve a requirement to a single best-matching distribution.
type Locating interface {
	Locate(ctx context.Context, req requirement.Requirement) (curdling.Distribution, bool, error)
}

// Found is the record produced by a successful Handle call: enough to
// file FieldURL and, when present, FieldLocatorURL back into the Maestro.
type Found struct {
	Requirement string
	URL         string
	LocatorURL  string // empty when the distribution carries no locator
}

// Finder turns a filed requirement into a download URL.
type Finder struct {
	Locator Locating
}

// Handle implements §4.6: parse the requirement, resolve a link
// requirement directly, otherwise probe the locator under both the
// hyphenated and underscored spelling (hyphenated first) and take the
// first non-empty result.
func (f *Finder) Handle(ctx context.Context, raw string) (Found, error) {
	ctx, span := tracer.Start(ctx, "Finder.Handle", trace.WithAttributes(attribute.String("requirement", raw)))
	defer span.End()

	req, err := requirement.Parse(raw)
	if err != nil {
		return Found{}, err
	}

	if req.IsLink {
		return Found{Requirement: req.Raw, URL: req.URL}, nil
	}

	for _, name := range requirement.AlternateSpellings(req.Name) {
		spelled := req
		spelled.Name = name
		dist, ok, err := f.Locator.Locate(ctx, spelled)
		if err != nil {
			return Found{}, err
		}
		if !ok {
			continue
		}
		found := Found{Requirement: req.Raw, URL: dist.DownloadURL}
		if dist.Locator != nil {
			found.LocatorURL = dist.Locator.BaseURL()
		}
		return found, nil
	}

	return Found{}, &curdling.Error{
		Op: "Finder.Handle", Kind: curdling.ErrReportable,
		Message: fmt.Sprintf("Requirement `%s' not found", req.Raw),
	}
}
