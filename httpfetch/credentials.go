package httpfetch

import "net/url"

// PropagateCredentials implements update_url_credentials: when an
// artifact's URL shares host and port with a locator's base URL, the
// locator's userinfo replaces the artifact URL's userinfo, preserving
// authentication across a private index's redirect to a relative
// artifact path. Otherwise artifactURL is returned unchanged.
//
// This exists so credentials never leak cross-host: a public mirror that
// happens to serve the same filename never receives a private index's
// Basic-auth token.
func PropagateCredentials(baseURL, artifactURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return artifactURL
	}
	art, err := url.Parse(artifactURL)
	if err != nil {
		return artifactURL
	}
	if base.Hostname() != art.Hostname() || base.Port() != art.Port() {
		return artifactURL
	}
	if base.User == nil {
		return artifactURL
	}
	out := *art
	out.User = base.User
	return out.String()
}
