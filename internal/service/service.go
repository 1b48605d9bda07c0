package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// Service is a capability provider producing BindOps, D-Bus rules,
// seccomp rules, startup hooks, and namespace limits (spec.md §3).
// Instances are stateless with respect to the runner except for
// startup-hook closures they carry, and never call into one another
// per spec.md §9 ("services compose by emitting opaque BindOps/rules
// into the merger, never by cross-calling each other").
type Service interface {
	Name() string
	PrettyName() string
	Description() string
	// Conflicts lists other service names that may not be active
	// together with this one.
	Conflicts() []string
	Deprecated() bool
	Experimental() bool

	IterBindOps() []bindop.BindOp
	IterDBusRules() []bindop.DBusRule
	IterSeccompRules() []bindop.SeccompRule
	IterStartupHooks() []bindop.Hook
	IterNamespaceLimits() map[bindop.NamespaceKind]int
}

// Base provides the metadata plumbing shared by every built-in service
// so each service file only needs to fill in what it actually emits,
// the same trimming the teacher applies by giving hugbox a pile of
// small single-purpose methods (bind/roBind/setenv/...) instead of
// repeating boilerplate in every caller.
type Base struct {
	name, pretty, desc string
	conflicts          []string
	deprecated         bool
	experimental       bool
}

func (b Base) Name() string        { return b.name }
func (b Base) PrettyName() string  { return b.pretty }
func (b Base) Description() string { return b.desc }
func (b Base) Conflicts() []string { return b.conflicts }
func (b Base) Deprecated() bool    { return b.deprecated }
func (b Base) Experimental() bool  { return b.experimental }

func (Base) IterBindOps() []bindop.BindOp                      { return nil }
func (Base) IterDBusRules() []bindop.DBusRule                  { return nil }
func (Base) IterSeccompRules() []bindop.SeccompRule            { return nil }
func (Base) IterStartupHooks() []bindop.Hook                   { return nil }
func (Base) IterNamespaceLimits() map[bindop.NamespaceKind]int { return nil }
