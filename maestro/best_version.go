package maestro

import (
	"fmt"
	"sort"
	"strings"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/pkg/legacyversion"
	"github.com/curdling/curdling/pkg/wheelname"
	"github.com/curdling/curdling/requirement"
)

// BestVersion implements the best_version algorithm (spec §4.5.1).
//
// reqOrName may be a full canonical requirement string or a bare package
// name; either way the name is extracted and the decision is made across
// every filed requirement for that name.
//
// Step 1 (primary override) lets any primary, user-filed requirement's
// recorded wheels win outright, even over a narrower transitive
// constraint. Step 2 (intersection) otherwise requires every filed
// requirement for the name to agree on a version. Ties within either step
// resolve to an arbitrary producer among those that tie; callers must not
// depend on which one.
func (m *Maestro) BestVersion(reqOrName string) (version string, source string, err error) {
	name, err := packageName(reqOrName)
	if err != nil {
		return "", "", err
	}

	candidates := m.GetRequirementsByPackageName(name)
	if len(candidates) == 0 {
		return "", "", &curdling.Error{Op: "Maestro.BestVersion", Kind: curdling.ErrUnknownRequirement,
			Message: fmt.Sprintf("no requirements filed for package %q", name)}
	}

	if v, src, ok := m.primaryOverride(candidates); ok {
		return v, src, nil
	}

	return m.intersect(name, candidates)
}

func packageName(reqOrName string) (string, error) {
	req, err := requirement.Parse(reqOrName)
	if err != nil {
		return "", err
	}
	if req.IsLink {
		return "", &curdling.Error{Op: "Maestro.BestVersion", Kind: curdling.ErrBadRequirement,
			Message: fmt.Sprintf("best_version does not apply to link requirements: %q", reqOrName)}
	}
	return req.Name, nil
}

func (m *Maestro) primaryOverride(candidates []string) (version, source string, ok bool) {
	var best legacyversion.Version
	var bestSource string
	found := false

	for _, req := range candidates {
		primary, err := m.IsPrimaryRequirement(req)
		if err != nil || !primary {
			continue
		}
		wheels, err := m.Wheels(req)
		if err != nil {
			continue
		}
		for _, w := range wheels {
			vs, err := wheelname.Version(w)
			if err != nil {
				continue
			}
			v, err := legacyversion.Parse(vs)
			if err != nil {
				continue
			}
			if !found || v.Compare(best) >= 0 {
				best, bestSource, found = v, req, true
			}
		}
	}
	if !found {
		return "", "", false
	}
	return best.String(), bestSource, true
}

func (m *Maestro) intersect(name string, candidates []string) (string, string, error) {
	count := make(map[string]int)
	source := make(map[string]string)

	for _, req := range candidates {
		mv, err := m.MatchingVersions(req)
		if err != nil {
			continue
		}
		for _, v := range mv {
			count[v]++
			source[v] = req
		}
	}

	need := len(candidates)
	var compatible legacyversion.Versions
	compatibleSource := make(map[string]string)
	for v, c := range count {
		if c != need {
			continue
		}
		pv, err := legacyversion.Parse(v)
		if err != nil {
			continue
		}
		compatible = append(compatible, pv)
		compatibleSource[pv.String()] = source[v]
	}

	if len(compatible) == 0 {
		return "", "", m.versionConflict(name, candidates)
	}

	sort.Sort(sort.Reverse(compatible))
	best := compatible[0].String()
	return best, compatibleSource[best], nil
}

func (m *Maestro) versionConflict(name string, candidates []string) error {
	m.metrics.versionConflict.Inc()

	var constraints []string
	for _, req := range candidates {
		m.mu.RLock()
		e, ok := m.entries[req]
		var cs string
		if ok {
			cs = e.req.Constraints.String()
		}
		m.mu.RUnlock()
		if cs != "" {
			constraints = append(constraints, cs)
		}
	}

	available := m.AvailableVersions(name)
	return &curdling.Error{
		Op:   "Maestro.BestVersion",
		Kind: curdling.ErrVersionConflict,
		Message: fmt.Sprintf("no version of %q satisfies every constraint: %s (available: %s)",
			name, strings.Join(constraints, "; "), strings.Join(available, ", ")),
	}
}
