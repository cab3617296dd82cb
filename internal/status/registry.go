package status

import (
	"errors"
	"fmt"
	"sort"

	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
)

// Canonical status names.
const (
	Active                         = "Active"
	ActiveWithContainments         = "Active With Containments"
	Available                      = "Available"
	AvailableWithContainments      = "Available With Containments"
	Unavailable                    = "Unavailable"
	UnavailablePartiallyFunctional = "Unavailable Partially Functional"
	Disabled                       = "Disabled"
	Retired                        = "Retired"
)

// Status describes one entry of the catalog.
type Status struct {
	Name                string
	Description         string
	RequiresContainment bool
	Terminal            bool
	SortOrder           int
}

// Edge is a declared transition. Override edges are only legal for callers
// holding an explicit override.
type Edge struct {
	From     string
	To       string
	Override bool
}

type edgeKey struct {
	from string
	to   string
}

// Registry is the immutable status vocabulary plus its transition graph.
type Registry struct {
	statuses        map[string]Status
	ordered         []Status
	edges           map[edgeKey]bool
	overrideSources map[string]struct{}
}

// Option customises a Registry at construction.
type Option func(*Registry)

// WithEdges replaces the default graph with an explicit edge set.
func WithEdges(edges ...Edge) Option {
	return func(r *Registry) {
		r.edges = make(map[edgeKey]bool, len(edges))
		for _, e := range edges {
			r.edges[edgeKey{from: e.From, to: e.To}] = e.Override
		}
	}
}

// WithOverrideSources sets the statuses whose outgoing edges in the default
// graph require an override. Defaults to Disabled.
func WithOverrideSources(names ...string) Option {
	return func(r *Registry) {
		r.overrideSources = make(map[string]struct{}, len(names))
		for _, n := range names {
			r.overrideSources[n] = struct{}{}
		}
	}
}

// DefaultCatalog returns the built-in status vocabulary.
func DefaultCatalog() []Status {
	return []Status{
		{Name: Active, Description: "In service", SortOrder: 10},
		{Name: ActiveWithContainments, Description: "In service under containment", RequiresContainment: true, SortOrder: 20},
		{Name: Available, Description: "Ready for deployment", SortOrder: 30},
		{Name: AvailableWithContainments, Description: "Ready for deployment under containment", RequiresContainment: true, SortOrder: 40},
		{Name: Unavailable, Description: "Out of service", SortOrder: 50},
		{Name: UnavailablePartiallyFunctional, Description: "Out of service, partially functional", RequiresContainment: true, SortOrder: 60},
		{Name: Disabled, Description: "Locked out pending review", SortOrder: 70},
		{Name: Retired, Description: "Permanently withdrawn", Terminal: true, SortOrder: 80},
	}
}

// NewRegistry validates the catalog and builds a registry.
func NewRegistry(statuses []Status, opts ...Option) (*Registry, error) {
	if len(statuses) == 0 {
		return nil, errors.New("status catalog is empty")
	}
	r := &Registry{
		statuses:        make(map[string]Status, len(statuses)),
		overrideSources: map[string]struct{}{Disabled: {}},
	}
	for _, s := range statuses {
		if s.Name == "" {
			return nil, errors.New("status name is required")
		}
		if _, dup := r.statuses[s.Name]; dup {
			return nil, fmt.Errorf("duplicate status %q", s.Name)
		}
		r.statuses[s.Name] = s
		r.ordered = append(r.ordered, s)
	}
	sort.SliceStable(r.ordered, func(i, j int) bool {
		return r.ordered[i].SortOrder < r.ordered[j].SortOrder
	})
	for _, opt := range opts {
		opt(r)
	}
	for key := range r.edges {
		from, ok := r.statuses[key.from]
		if !ok {
			return nil, fmt.Errorf("edge references unknown status %q", key.from)
		}
		if _, ok := r.statuses[key.to]; !ok {
			return nil, fmt.Errorf("edge references unknown status %q", key.to)
		}
		if from.Terminal {
			return nil, fmt.Errorf("terminal status %q cannot have outgoing edges", key.from)
		}
	}
	return r, nil
}

// MustDefault builds the registry over the default catalog.
func MustDefault(opts ...Option) *Registry {
	r, err := NewRegistry(DefaultCatalog(), opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the named status or an UnknownStatus error.
func (r *Registry) Lookup(name string) (Status, error) {
	s, ok := r.statuses[name]
	if !ok {
		return Status{}, pkgerrors.Newf(pkgerrors.CodeUnknownStatus, "unknown status %q", name).
			WithDetails(map[string]any{"status": name})
	}
	return s, nil
}

// All returns the catalog ordered by sort order.
func (r *Registry) All() []Status {
	out := make([]Status, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// RequiresContainment reports whether entering name needs a containment record.
func (r *Registry) RequiresContainment(name string) bool {
	return r.statuses[name].RequiresContainment
}

// IsTerminal reports whether name has no outgoing transitions.
func (r *Registry) IsTerminal(name string) bool {
	return r.statuses[name].Terminal
}

// CanTransition reports whether from -> to is legal without an override.
func (r *Registry) CanTransition(from, to string) bool {
	return r.allowed(from, to, false)
}

// CanTransitionWithOverride also admits override-only edges.
func (r *Registry) CanTransitionWithOverride(from, to string) bool {
	return r.allowed(from, to, true)
}

// CheckTransition returns a typed error when from -> to is not legal.
func (r *Registry) CheckTransition(from, to string, override bool) error {
	if _, err := r.Lookup(from); err != nil {
		return err
	}
	if _, err := r.Lookup(to); err != nil {
		return err
	}
	if r.allowed(from, to, override) {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeInvalidStatusTransition, "transition %q -> %q is not allowed", from, to).
		WithDetails(map[string]any{"from": from, "to": to, "override": override})
}

func (r *Registry) allowed(from, to string, override bool) bool {
	src, ok := r.statuses[from]
	if !ok {
		return false
	}
	if _, ok := r.statuses[to]; !ok {
		return false
	}
	if src.Terminal {
		return false
	}
	if from == to {
		return true
	}
	if r.edges != nil {
		overrideOnly, declared := r.edges[edgeKey{from: from, to: to}]
		if !declared {
			return false
		}
		return !overrideOnly || override
	}
	if _, gated := r.overrideSources[from]; gated {
		return override
	}
	return true
}
