package locator

import (
	"testing"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/httpfetch"
)

func TestNewAggregatingOrdersAPIBeforeScraping(t *testing.T) {
	cfg := curdling.Config{
		PyPIURLs:     []string{"http://pypi1", "http://pypi2"},
		CurdlingURLs: []string{"http://curdling1"},
	}
	agg := NewAggregating(cfg, httpfetch.NewPool(nil))
	if len(agg.Locators) != 3 {
		t.Fatalf("got %d locators, want 3", len(agg.Locators))
	}
	if _, ok := agg.Locators[0].(*APILocator); !ok {
		t.Errorf("locator[0] = %T, want *APILocator", agg.Locators[0])
	}
	if _, ok := agg.Locators[1].(*ScrapingLocator); !ok {
		t.Errorf("locator[1] = %T, want *ScrapingLocator", agg.Locators[1])
	}
	if _, ok := agg.Locators[2].(*ScrapingLocator); !ok {
		t.Errorf("locator[2] = %T, want *ScrapingLocator", agg.Locators[2])
	}
}
