package curdling

// Config is the plain, caller-constructed configuration for building a
// Locator stack. There is no file-format parser here: reading
// configuration off disk or the environment is an external collaborator's
// job; this struct is what that collaborator hands in.
type Config struct {
	// PyPIURLs is the ordered list of scraping-locator base URLs.
	PyPIURLs []string
	// CurdlingURLs is the ordered list of API-locator base URLs. API
	// locators are tried before scraping locators in the aggregated order.
	CurdlingURLs []string
	// ExcludePrereleases, when true, filters pre-release versions out of
	// matching_versions/available_versions. Pre-releases are included by
	// default, so the zero value of this Config (false) matches that
	// default without requiring callers to opt in.
	ExcludePrereleases bool
}
