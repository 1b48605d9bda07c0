// Package config folds a set of activated services into a single
// BwrapConfig (spec.md §4.2, C6), grounded on the teacher's
// hugbox.go run() which assembles one flat fdArgs/bwrapArgs slice from
// a fixed pile of feature toggles — generalized here into "fold N
// services' BindOps/rules, in merger order, into one config value" so
// the Runner (C9) never has to know about individual services.
package config

import (
	"fmt"
	"sort"

	"github.com/bubblejail/bubblejail/internal/bindop"
	"github.com/bubblejail/bubblejail/internal/bjerror"
	"github.com/bubblejail/bubblejail/internal/seccomp"
	"github.com/bubblejail/bubblejail/internal/service"
)

// BwrapConfig is the fully composed sandbox configuration, ready for
// the Runner to translate into bwrap argv plus side-channel setup
// (dbus-proxy, seccomp program, namespace limits).
type BwrapConfig struct {
	BindOps         []bindop.BindOp
	DBusRules       []bindop.DBusRule
	SeccompRules    []bindop.SeccompRule
	StartupHooks    []bindop.Hook
	NamespaceLimits map[bindop.NamespaceKind]int

	// ExecutableNames is the common service's executable_name hint,
	// used by the Runner as the sandboxed program's default argv[0]
	// when the run command supplies none.
	ExecutableNames []string
}

// Merge composes active (already-conflict-checked) services into a
// BwrapConfig in spec.md §4.2's fixed order: common first, the
// remaining services in alphabetical order, debug last. BindOp dst
// collisions are a composition error, except that root_share (merged
// first among non-common services) may be overlapped by a later
// service's bind.
func Merge(active []service.Service) (*BwrapConfig, error) {
	ordered, err := orderServices(active)
	if err != nil {
		return nil, err
	}

	cfg := &BwrapConfig{
		NamespaceLimits: make(map[bindop.NamespaceKind]int),
		// The baseline deny list is the first entry in merge order so any
		// service's explicit Allow (debug merges last) overrides it, per
		// spec.md §4.2/§4.6.
		SeccompRules: seccomp.Baseline(seccomp.BaselineVersion),
	}
	seenDst := make(map[string]string) // dst -> owning service name

	for _, svc := range ordered {
		for _, op := range svc.IterBindOps() {
			dst := op.Dst()
			if dst != "" {
				if owner, exists := seenDst[dst]; exists && owner != "root_share" {
					return nil, bjerror.New(bjerror.KindConfigParse,
						fmt.Sprintf("bind destination %q claimed by both %q and %q", dst, owner, svc.Name()))
				}
				seenDst[dst] = svc.Name()
			}
			cfg.BindOps = append(cfg.BindOps, op)
		}
		cfg.DBusRules = append(cfg.DBusRules, svc.IterDBusRules()...)
		cfg.SeccompRules = append(cfg.SeccompRules, svc.IterSeccompRules()...)
		cfg.StartupHooks = append(cfg.StartupHooks, svc.IterStartupHooks()...)
		for kind, limit := range svc.IterNamespaceLimits() {
			cfg.NamespaceLimits[kind] = limit
		}
		if svc.Name() == "common" {
			if c, ok := svc.(interface{ ExecutableNames() []string }); ok {
				cfg.ExecutableNames = c.ExecutableNames()
			}
		}
	}

	return cfg, nil
}

// orderServices sorts active into spec.md §4.2's merger order: common
// first, then root_share (so its binds run first among non-common
// services and a later alphabetical service may narrow them),
// everything else alphabetical, debug last.
func orderServices(active []service.Service) ([]service.Service, error) {
	var common, rootShare, debug service.Service
	rest := make([]service.Service, 0, len(active))

	for _, svc := range active {
		switch svc.Name() {
		case "common":
			common = svc
		case "root_share":
			rootShare = svc
		case "debug":
			debug = svc
		default:
			rest = append(rest, svc)
		}
	}

	sort.Slice(rest, func(i, j int) bool { return rest[i].Name() < rest[j].Name() })

	ordered := make([]service.Service, 0, len(active))
	if common != nil {
		ordered = append(ordered, common)
	}
	if rootShare != nil {
		ordered = append(ordered, rootShare)
	}
	ordered = append(ordered, rest...)
	if debug != nil {
		ordered = append(ordered, debug)
	}
	return ordered, nil
}

// CheckBindSources validates that every non-Try Bind/DevBind op's
// source exists on the host, per spec.md §7's BindSourceMissing error.
// Called by the Runner after Merge and before bwrap is spawned.
func CheckBindSources(cfg *BwrapConfig, exists func(path string) bool) error {
	for _, op := range cfg.BindOps {
		var src string
		var try bool
		switch v := op.(type) {
		case bindop.Bind:
			src, try = v.Src, v.Try
		case bindop.DevBind:
			src, try = v.Src, v.Try
		default:
			continue
		}
		if try || src == "" {
			continue
		}
		if !exists(src) {
			return bjerror.New(bjerror.KindBindSourceMissing, src)
		}
	}
	return nil
}
