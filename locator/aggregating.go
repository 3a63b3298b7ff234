package locator

import (
	"context"

	"github.com/quay/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/pkg/legacyversion"
	"github.com/curdling/curdling/requirement"
)

// Aggregating queries a fixed, ordered list of locators for a
// requirement and returns the first non-empty best match, preferring
// earlier locators in the list even though every locator is queried
// concurrently.
type Aggregating struct {
	Locators []curdling.Locator
}

// Locate implements find_packages across every configured locator: each
// catalog is fetched concurrently, but the winning candidate is chosen by
// walking the results back in configured order and returning the first
// one with any constraint-satisfying version. A locator whose fetch
// errors (transport failure) is treated as empty and logged, not
// propagated — only a total miss across every locator is the caller's
// problem.
func (a *Aggregating) Locate(ctx context.Context, req requirement.Requirement) (curdling.Distribution, bool, error) {
	catalogs := make([]map[string]curdling.Distribution, len(a.Locators))

	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range a.Locators {
		i, loc := i, loc
		g.Go(func() error {
			catalog, err := loc.GetProject(gctx, req.Name)
			if err != nil {
				zlog.Debug(ctx).Err(err).Str("locator", loc.BaseURL()).Str("package", req.Name).
					Msg("locator fetch failed, treating as empty")
				return nil
			}
			catalogs[i] = catalog
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return curdling.Distribution{}, false, err
	}

	for _, catalog := range catalogs {
		dist, ok := findPackages(catalog, req)
		if ok {
			return dist, true, nil
		}
	}
	return curdling.Distribution{}, false, nil
}

// findPackages applies req's constraint matcher to every catalog key,
// sorts the matches under the version scheme, and returns the
// distribution for the newest match.
func findPackages(catalog map[string]curdling.Distribution, req requirement.Requirement) (curdling.Distribution, bool) {
	var matches legacyversion.Versions
	byVersion := make(map[string]curdling.Distribution)
	for vs, dist := range catalog {
		v, err := legacyversion.Parse(vs)
		if err != nil {
			continue
		}
		if !req.Constraints.Matches(v) {
			continue
		}
		matches = append(matches, v)
		byVersion[v.String()] = dist
	}
	if len(matches) == 0 {
		return curdling.Distribution{}, false
	}
	best := matches[0]
	for _, v := range matches[1:] {
		if v.Compare(best) > 0 {
			best = v
		}
	}
	return byVersion[best.String()], true
}
