// Package requirement parses and canonicalizes requirement strings: the
// symbolic "name (constraint, ...)" form and the direct download/VCS link
// form.
package requirement

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/pkg/legacyversion"
)

// Requirement is a canonicalized requirement: either a symbolic name with
// a constraint set, or a direct link.
//
// Raw is the canonical requirement string and is used as the Maestro's
// registry key; two requirement strings that canonicalize identically
// collide in the registry (see maestro.Maestro.FileRequirement).
type Requirement struct {
	Name        string
	Constraints legacyversion.ConstraintSet
	IsLink      bool
	URL         string
	Raw         string
}

// reqPattern matches the symbolic "name" or "name (constraints)" form.
// Names may contain letters, digits, ".", "_", and "-".
var reqPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(?:\(\s*(.*?)\s*\))?$`)

// Parse canonicalizes a raw requirement string into a Requirement, or
// returns a curdling.Error of kind ErrBadRequirement if it cannot be
// parsed.
//
// Both hyphenated and underscored name spellings are accepted and
// normalized to the hyphenated canonical form; callers that need to probe
// a remote under both spellings should use AlternateSpellings.
func Parse(raw string) (Requirement, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Requirement{}, &curdling.Error{
			Op: "requirement.Parse", Kind: curdling.ErrBadRequirement,
			Message: "empty requirement string",
		}
	}

	if looksLikeLink(s) {
		return Requirement{IsLink: true, URL: s, Raw: s}, nil
	}

	m := reqPattern.FindStringSubmatch(s)
	if m == nil {
		return Requirement{}, &curdling.Error{
			Op: "requirement.Parse", Kind: curdling.ErrBadRequirement,
			Message: fmt.Sprintf("unparsable requirement: %q", raw),
		}
	}

	name := NormalizeName(m[1])
	constraints := m[2]
	if constraints != "" && !strings.ContainsAny(constraints, "=!<>,") {
		// A bare version is the canonical form of an exact pin.
		constraints = "==" + constraints
	}
	cs, err := legacyversion.ParseConstraints(constraints)
	if err != nil {
		return Requirement{}, &curdling.Error{
			Op: "requirement.Parse", Kind: curdling.ErrBadRequirement,
			Message: fmt.Sprintf("unparsable requirement: %q", raw), Inner: err,
		}
	}

	req := Requirement{Name: name, Constraints: cs}
	req.Raw = req.format()
	return req, nil
}

// looksLikeLink reports whether s is a URL rather than a symbolic
// requirement: it carries a "scheme://" or "scheme+something://" prefix.
func looksLikeLink(s string) bool {
	i := strings.Index(s, "://")
	if i <= 0 {
		return false
	}
	scheme := s[:i]
	for _, r := range scheme {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '+', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}

// NormalizeName case-folds a package name and treats hyphens and
// underscores as equivalent, preferring hyphens in the canonical form.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// AlternateSpellings returns the hyphenated and underscored spellings of a
// normalized name, hyphenated first, for callers that must probe a remote
// under both spellings (remotes are inconsistent about which they index
// under).
func AlternateSpellings(name string) [2]string {
	hyphen := strings.ReplaceAll(name, "_", "-")
	underscore := strings.ReplaceAll(name, "-", "_")
	return [2]string{hyphen, underscore}
}

// format renders the canonical requirement string: "name" with no
// constraints, "name (version)" for a single exact pin (the "==" prefix is
// dropped), or "name (op version, op version, ...)" otherwise.
func (r Requirement) format() string {
	switch {
	case len(r.Constraints) == 0:
		return r.Name
	case len(r.Constraints) == 1 && r.Constraints[0].Op == legacyversion.OpEQ:
		return fmt.Sprintf("%s (%s)", r.Name, r.Constraints[0].Version.String())
	default:
		return fmt.Sprintf("%s (%s)", r.Name, r.Constraints.String())
	}
}

// String implements format_requirement: it returns the canonical
// requirement string, the inverse of Parse for any already-canonical
// input.
func (r Requirement) String() string {
	if r.IsLink {
		return r.URL
	}
	return r.Raw
}
