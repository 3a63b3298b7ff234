package maestro

import "github.com/curdling/curdling"

// BrokenVersions returns every filed requirement for name that carries a
// non-empty exception data slot.
//
// spec.md §9 flags that the source's broken_versions predicate compares
// the exception slot of the *argument requirement* rather than iterating
// per available version — which reads as a bug, since two requirements
// for the same package can disagree on whether a given version is
// broken. This implementation tracks exception strictly per requirement,
// exactly as the ambiguous source does, and does not attempt to
// generalize it to a per-version predicate: callers that need "is version
// v of package p broken" must check the exception slot of the specific
// requirement that encountered it, not aggregate across R(p).
func (m *Maestro) BrokenVersions(name string) []string {
	candidates := m.GetRequirementsByPackageName(name)
	var broken []string
	for _, req := range candidates {
		if v, ok, err := m.GetData(req, curdling.FieldException); err == nil && ok && v != "" {
			broken = append(broken, req)
		}
	}
	return broken
}
