package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// debugService is the escape hatch described in spec.md §4.1/§4.6: raw
// extra bwrap arguments passed through verbatim via Arg{Raw}, plus an
// explicit per-syscall seccomp allowlist that overrides any Deny rule
// emitted by an earlier service, since config.Merge always merges debug
// last (its orderServices puts common first, root_share next, the rest
// alphabetically, then debug), whatever the registration order.
type debugService struct {
	Base
	extraArgs     []string
	allowSyscalls []string
}

func registerDebug(r *Registry) {
	schema := Schema{
		{Name: "extra_args", Kind: KindStringList, Default: []string{}, Description: "raw bwrap arguments appended verbatim"},
		{Name: "allow_syscalls", Kind: KindStringList, Default: []string{}, Description: "syscalls force-allowed regardless of other services' seccomp rules"},
	}
	r.register("debug", schema, func(opts Options) (Service, error) {
		return &debugService{
			Base: Base{
				name:         "debug",
				pretty:       "Debug escape hatch",
				desc:         "Raw bwrap args and seccomp allow overrides for troubleshooting",
				experimental: true,
			},
			extraArgs:     opts.StringList("extra_args"),
			allowSyscalls: opts.StringList("allow_syscalls"),
		}, nil
	})
}

func (d *debugService) IterBindOps() []bindop.BindOp {
	var ops []bindop.BindOp
	for _, a := range d.extraArgs {
		ops = append(ops, bindop.Arg{Raw: a})
	}
	return ops
}

func (d *debugService) IterSeccompRules() []bindop.SeccompRule {
	var rules []bindop.SeccompRule
	for _, s := range d.allowSyscalls {
		rules = append(rules, bindop.SeccompRule{Syscall: s, Action: bindop.SeccompAllow})
	}
	return rules
}
