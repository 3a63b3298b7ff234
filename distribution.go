package curdling

import (
	"context"

	"github.com/package-url/packageurl-go"
)

// Distribution is an immutable record of a single installable artifact: a
// wheel or source archive, plus enough context to fetch and authenticate
// the download.
//
// The Locator back-reference is used to propagate credentials when
// downloading (see httpfetch.PropagateCredentials): a private index that
// redirects to a relative artifact path needs its userinfo carried along,
// but only when the artifact URL shares host and port with the locator.
type Distribution struct {
	Name        string
	Version     string
	SourceURL   string
	DownloadURL string
	Locator     Locator

	// PURL is the canonical package-url identity for this distribution,
	// derived from Name and Version at construction time.
	PURL packageurl.PackageURL
}

// NewDistribution builds a Distribution and derives its PURL.
func NewDistribution(name, version, sourceURL, downloadURL string, locator Locator) Distribution {
	return Distribution{
		Name:        name,
		Version:     version,
		SourceURL:   sourceURL,
		DownloadURL: downloadURL,
		Locator:     locator,
		PURL: packageurl.PackageURL{
			Type:    "pypi",
			Name:    name,
			Version: version,
		},
	}
}

// Locator is the capability set shared by every concrete locator variant:
// the scraping (HTML index) locator and the API (JSON catalog) locator.
//
// Implementers should use a tagged variant (a concrete struct per back-end)
// rather than virtual inheritance; two locators are Equal iff they share a
// concrete variant and URL, which lets callers deduplicate configuration.
type Locator interface {
	// GetProject fetches the catalog for one package name: a map from
	// version string to Distribution.
	GetProject(ctx context.Context, name string) (map[string]Distribution, error)
	// BaseURL is the root URL used for credential scoping.
	BaseURL() string
	// Scheme identifies the version scheme this locator's catalogs use.
	Scheme() string
	// Equal reports whether two locators share a concrete variant and URL.
	Equal(other Locator) bool
}
