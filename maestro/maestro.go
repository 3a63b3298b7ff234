// Package maestro implements the in-memory registry of filed
// requirements: their status bitmap, per-requirement data slots, and the
// constraint-intersection algorithm that selects the best satisfying
// version.
//
// The Maestro is the sole piece of mutable shared state in the system
// (see the concurrency model in SPEC_FULL.md); it serializes all mutating
// operations and allows concurrent readers.
package maestro

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quay/zlog"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/pkg/legacyversion"
	"github.com/curdling/curdling/pkg/wheelname"
	"github.com/curdling/curdling/requirement"
)

// Root is the back-link sentinel recorded for a user-supplied,
// top-level requirement.
const Root = "<root>"

// entry holds the full mutable state for one filed requirement.
type entry struct {
	id      uuid.UUID
	req     requirement.Requirement
	status  curdling.Status
	data    map[curdling.DataField]string
	wheels  []string // see Maestro doc comment on the wheel-slot exception
	parents []string
}

// Maestro is the in-memory requirement registry.
//
// The wheel data field is the one exception to the write-once rule
// described in spec.md §3: building a single requirement can yield
// several wheels (one per Python/platform tag), so SetData on
// curdling.FieldWheel appends to a per-requirement multiset instead of
// erroring on a second write. Every other field remains strict
// write-once. This decision is recorded in DESIGN.md.
type Maestro struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	prereleases bool

	metrics *metrics
}

type metrics struct {
	statusGauge     *prometheus.GaugeVec
	versionConflict prometheus.Counter
	reportable      prometheus.Counter
}

// New constructs an empty Maestro. When includePrereleases is false,
// MatchingVersions and AvailableVersions filter out prerelease/dev/post
// versions, per the "prereleases" configuration knob (spec §6).
func New(includePrereleases bool) *Maestro {
	return &Maestro{
		entries:     make(map[string]*entry),
		prereleases: includePrereleases,
		metrics:     newMetrics(),
	}
}

// NewFromConfig constructs a Maestro honoring cfg.ExcludePrereleases.
func NewFromConfig(cfg curdling.Config) *Maestro {
	return New(!cfg.ExcludePrereleases)
}

func newMetrics() *metrics {
	return &metrics{
		statusGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "curdling",
			Subsystem: "maestro",
			Name:      "requirements",
			Help:      "Number of filed requirements currently in each status.",
		}, []string{"status"}),
		versionConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "curdling",
			Subsystem: "maestro",
			Name:      "version_conflicts_total",
			Help:      "Number of VersionConflict errors raised by BestVersion.",
		}),
		reportable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "curdling",
			Subsystem: "maestro",
			Name:      "reportable_errors_total",
			Help:      "Number of ReportableError conditions raised against filed requirements.",
		}),
	}
}

// Collectors returns the Prometheus collectors this Maestro maintains, for
// registration by the caller.
func (m *Maestro) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.metrics.statusGauge, m.metrics.versionConflict, m.metrics.reportable}
}

func unknownRequirement(op, req string) error {
	return &curdling.Error{Op: op, Kind: curdling.ErrUnknownRequirement,
		Message: fmt.Sprintf("requirement not filed: %q", req)}
}

// FileRequirement parses raw and inserts it if absent, or appends parent
// to its back-link list if already present. parent is the canonical
// string of the filing parent, or Root for a user-supplied requirement.
//
// Filing the same canonical requirement twice yields a single registry
// entry whose back-link list grows by one each time (the round-trip law
// in spec.md §8).
func (m *Maestro) FileRequirement(ctx context.Context, raw, parent string) (requirement.Requirement, error) {
	req, err := requirement.Parse(raw)
	if err != nil {
		return requirement.Requirement{}, err
	}
	if parent == "" {
		parent = Root
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[req.Raw]
	if !ok {
		e = &entry{
			id:      uuid.New(),
			req:     req,
			status:  curdling.Pending,
			data:    make(map[curdling.DataField]string),
			parents: []string{parent},
		}
		m.entries[req.Raw] = e
		m.metrics.statusGauge.WithLabelValues(curdling.Pending.String()).Inc()
		zlog.Debug(ctx).Str("component", "maestro.FileRequirement").
			Str("requirement", req.Raw).Str("parent", parent).Msg("filed new requirement")
		return req, nil
	}
	e.parents = append(e.parents, parent)
	return e.req, nil
}

// SetStatus replaces a requirement's status bitmap outright. This is
// reserved for recovery; ordinary progress should use AddStatus so bits
// accumulate monotonically.
func (m *Maestro) SetStatus(req string, status curdling.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[req]
	if !ok {
		return unknownRequirement("Maestro.SetStatus", req)
	}
	m.metrics.statusGauge.WithLabelValues(e.status.String()).Dec()
	e.status = status
	m.metrics.statusGauge.WithLabelValues(e.status.String()).Inc()
	return nil
}

// AddStatus ORs bit into the requirement's status bitmap.
func (m *Maestro) AddStatus(req string, bit curdling.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[req]
	if !ok {
		return unknownRequirement("Maestro.AddStatus", req)
	}
	m.metrics.statusGauge.WithLabelValues(e.status.String()).Dec()
	e.status |= bit
	m.metrics.statusGauge.WithLabelValues(e.status.String()).Inc()
	return nil
}

// GetStatus returns the current status bitmap for req.
func (m *Maestro) GetStatus(req string) (curdling.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[req]
	if !ok {
		return 0, unknownRequirement("Maestro.GetStatus", req)
	}
	return e.status, nil
}

// SetData writes a value into one of the seven fixed data slots.
//
// Every field except curdling.FieldWheel is write-once: a second write to
// a non-empty slot fails with ErrDataSlotInUse. curdling.FieldWheel
// instead appends to a multiset (see the Maestro doc comment), so two
// workers racing to record distinct wheels both succeed; two racing to
// record the same filename are deduplicated.
func (m *Maestro) SetData(req string, field curdling.DataField, value string) error {
	if _, ok := curdling.ValidFields[field]; !ok {
		return &curdling.Error{Op: "Maestro.SetData", Kind: curdling.ErrBadField,
			Message: fmt.Sprintf("unknown field: %q", field)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[req]
	if !ok {
		return unknownRequirement("Maestro.SetData", req)
	}

	if field == curdling.FieldWheel {
		for _, w := range e.wheels {
			if w == value {
				return nil
			}
		}
		e.wheels = append(e.wheels, value)
		return nil
	}

	if cur, ok := e.data[field]; ok && cur != "" {
		return &curdling.Error{Op: "Maestro.SetData", Kind: curdling.ErrDataSlotInUse,
			Message: fmt.Sprintf("field %q already set for %q", field, req)}
	}
	e.data[field] = value
	return nil
}

// GetData returns the value of a data slot, and false if it is unset.
func (m *Maestro) GetData(req string, field curdling.DataField) (string, bool, error) {
	if _, ok := curdling.ValidFields[field]; !ok {
		return "", false, &curdling.Error{Op: "Maestro.GetData", Kind: curdling.ErrBadField,
			Message: fmt.Sprintf("unknown field: %q", field)}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[req]
	if !ok {
		return "", false, unknownRequirement("Maestro.GetData", req)
	}
	if field == curdling.FieldWheel {
		if len(e.wheels) == 0 {
			return "", false, nil
		}
		return e.wheels[len(e.wheels)-1], true, nil
	}
	v, ok := e.data[field]
	return v, ok && v != "", nil
}

// Wheels returns every wheel filename recorded against req, in the order
// they were set.
func (m *Maestro) Wheels(req string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[req]
	if !ok {
		return nil, unknownRequirement("Maestro.Wheels", req)
	}
	out := make([]string, len(e.wheels))
	copy(out, e.wheels)
	return out, nil
}

// FiledPackages returns the distinct package names across all filed
// requirements, excluding link requirements (which have no name).
func (m *Maestro) FiledPackages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range m.entries {
		if e.req.IsLink {
			continue
		}
		seen[e.req.Name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FilterBy returns every filed requirement whose status, ANDed with
// status, is non-zero; or, when status is curdling.Pending, every
// requirement whose status is exactly zero.
func (m *Maestro) FilterBy(status curdling.Status) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for raw, e := range m.entries {
		if status == curdling.Pending {
			if e.status == curdling.Pending {
				out = append(out, raw)
			}
			continue
		}
		if e.status&status != 0 {
			out = append(out, raw)
		}
	}
	sort.Strings(out)
	return out
}

// GetRequirementsByPackageName returns every filed requirement for a
// given normalized package name.
func (m *Maestro) GetRequirementsByPackageName(name string) []string {
	name = requirement.NormalizeName(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for raw, e := range m.entries {
		if !e.req.IsLink && e.req.Name == name {
			out = append(out, raw)
		}
	}
	sort.Strings(out)
	return out
}

// AvailableVersions returns every version recorded in the wheel data slot
// across every filed requirement for name, sorted strictly decreasing and
// deduplicated. When the Maestro was constructed with prereleases=false,
// prerelease versions are excluded.
func (m *Maestro) AvailableVersions(name string) []string {
	name = requirement.NormalizeName(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.availableVersionsLocked(name)
}

func (m *Maestro) availableVersionsLocked(name string) []string {
	seen := make(map[string]legacyversion.Version)
	for _, e := range m.entries {
		if e.req.IsLink || e.req.Name != name {
			continue
		}
		for _, w := range e.wheels {
			vs, err := wheelname.Version(w)
			if err != nil {
				continue
			}
			v, err := legacyversion.Parse(vs)
			if err != nil {
				continue
			}
			if !m.prereleases && v.IsPrerelease() {
				continue
			}
			seen[v.String()] = v
		}
	}
	vs := make(legacyversion.Versions, 0, len(seen))
	for _, v := range seen {
		vs = append(vs, v)
	}
	sort.Sort(sort.Reverse(vs))
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// MatchingVersions returns the subset of AvailableVersions(name-of-req)
// that satisfy req's constraint set.
func (m *Maestro) MatchingVersions(req string) ([]string, error) {
	m.mu.RLock()
	e, ok := m.entries[req]
	if !ok {
		m.mu.RUnlock()
		return nil, unknownRequirement("Maestro.MatchingVersions", req)
	}
	name := e.req.Name
	cs := e.req.Constraints
	versions := m.availableVersionsLocked(name)
	m.mu.RUnlock()

	var out []string
	for _, vs := range versions {
		v, err := legacyversion.Parse(vs)
		if err != nil {
			continue
		}
		if cs.Matches(v) {
			out = append(out, vs)
		}
	}
	return out, nil
}

// IsPrimaryRequirement reports whether req has no non-sentinel parent,
// i.e. was filed directly by the user. Primary-ness is derived from the
// shape of the back-link list on every call, not cached, so it stays
// correct if a requirement is later filed again as primary.
func (m *Maestro) IsPrimaryRequirement(req string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[req]
	if !ok {
		return false, unknownRequirement("Maestro.IsPrimaryRequirement", req)
	}
	return isPrimaryLocked(e), nil
}

func isPrimaryLocked(e *entry) bool {
	for _, p := range e.parents {
		if p != Root {
			return false
		}
	}
	return true
}

// Ancestors returns the full back-link chain recorded for req: the
// parents it was filed under, including repeats and the Root sentinel.
// Useful for explaining which dependency chain produced a losing bound
// when BestVersion raises VersionConflict.
func (m *Maestro) Ancestors(req string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[req]
	if !ok {
		return nil, unknownRequirement("Maestro.Ancestors", req)
	}
	out := make([]string, len(e.parents))
	copy(out, e.parents)
	return out, nil
}
