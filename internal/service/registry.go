package service

import (
	"fmt"
	"sort"
)

// Factory builds a Service from its validated options record.
type Factory func(opts Options) (Service, error)

type entry struct {
	schema  Schema
	factory Factory
}

// Registry is the static catalog keyed by service name (spec.md §4.1).
// The zero value is not usable; use NewRegistry to get the built-in
// catalog.
type Registry struct {
	entries map[string]entry
	order   []string
}

// NewRegistry returns the registry populated with every built-in
// service (spec.md §4.1's enumerated list).
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}
	registerBuiltins(r)
	return r
}

func (r *Registry) register(name string, schema Schema, factory Factory) {
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("service: duplicate registration for %q", name))
	}
	r.entries[name] = entry{schema: schema, factory: factory}
	r.order = append(r.order, name)
}

// List returns every registered service name in stable registration
// order, used for man-page generation (spec.md §4.1).
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schema returns the option schema for name, or false if unknown.
func (r *Registry) Schema(name string) (Schema, bool) {
	e, ok := r.entries[name]
	return e.schema, ok
}

// Validate decodes and type-checks table against name's schema (spec.md
// §4.1). An empty, present table activates the service with defaults.
func (r *Registry) Validate(name string, table map[string]interface{}) (Options, []Warning, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, nil, fmt.Errorf("service: unknown service %q", name)
	}
	return e.schema.Validate(name, table)
}

// Build validates table and constructs the Service, attaching a
// deprecated/experimental warning for the service itself (as opposed to
// one of its options) when applicable.
func (r *Registry) Build(name string, table map[string]interface{}) (Service, []Warning, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, nil, fmt.Errorf("service: unknown service %q", name)
	}
	opts, warnings, err := e.schema.Validate(name, table)
	if err != nil {
		return nil, nil, err
	}
	svc, err := e.factory(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("service %q: %w", name, err)
	}
	if svc.Deprecated() {
		warnings = append(warnings, Warning{Service: name, Message: "service is deprecated"})
	}
	if svc.Experimental() {
		warnings = append(warnings, Warning{Service: name, Message: "service is experimental"})
	}
	return svc, warnings, nil
}

// ConflictPair is one unordered pair of mutually exclusive active
// service names.
type ConflictPair struct {
	A, B string
}

// ConflictCheck returns the first pair in active violating a
// Conflicts() relation (spec.md §4.1). The relation is treated as
// symmetric: a conflict declared on either side of the pair is
// sufficient (spec.md §8 invariant 2).
func ConflictCheck(active []Service) (ConflictPair, bool) {
	byName := make(map[string]Service, len(active))
	for _, svc := range active {
		byName[svc.Name()] = svc
	}

	names := make([]string, 0, len(active))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		svc := byName[name]
		for _, other := range svc.Conflicts() {
			if _, present := byName[other]; present {
				pair := ConflictPair{A: name, B: other}
				if pair.A > pair.B {
					pair.A, pair.B = pair.B, pair.A
				}
				return pair, true
			}
		}
	}
	return ConflictPair{}, false
}
