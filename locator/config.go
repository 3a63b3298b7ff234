package locator

import (
	"github.com/curdling/curdling"
	"github.com/curdling/curdling/httpfetch"
)

// NewAggregating builds the ordered locator stack described by cfg: API
// locators first, then scraping locators, both in the configured order,
// sharing a single HTTP pool.
func NewAggregating(cfg curdling.Config, pool *httpfetch.Pool) *Aggregating {
	var locators []curdling.Locator
	for _, base := range cfg.CurdlingURLs {
		locators = append(locators, NewAPILocator(pool, base))
	}
	for _, base := range cfg.PyPIURLs {
		locators = append(locators, NewScrapingLocator(pool, base))
	}
	return &Aggregating{Locators: locators}
}
