package runner

import (
	"fmt"
	"sort"

	"github.com/bubblejail/bubblejail/internal/bindop"
	"github.com/bubblejail/bubblejail/internal/config"
)

// HelperFDEnv is the environment variable the Runner sets (via a
// --setenv bwrap argument) to tell the helper which inherited fd holds
// the already-listening control socket; the helper wraps that raw fd
// with helper.NewServerFromFD, per spec.md §4.4 step 1 ("a pre-opened
// UNIX socket inherited via an FD").
const HelperFDEnv = "BUBBLEJAIL_HELPER_FD"

// ArgvPlan carries everything BuildArgv needs beyond the merged
// BwrapConfig itself: fd numbers assigned once the Runner has decided
// the final ExtraFiles ordering, and the two paths bwrap's own flags
// and the trailing exec need.
type ArgvPlan struct {
	// HostHomeDir is the instance's on-disk home directory; it is bound
	// at SandboxHomeDir, which is what the sandboxed process sees as
	// HOME.
	HostHomeDir    string
	SandboxHomeDir string
	RuntimeDir     string

	// FileWriteFDs is parallel to the FileWrite ops found (in order) in
	// cfg.BindOps; each entry is the fd number of that op's pipe read
	// end as it will appear inside bwrap's own process (before bwrap
	// forwards it into the sandbox via --file).
	FileWriteFDs []int

	// SeccompFD is the fd number of the seccomp program's pipe read
	// end, or 0 if cfg has no seccomp rules to compile.
	SeccompFD int

	// HelperFD is the fd number of the duplicated, still-listening
	// helper control socket.
	HelperFD int

	// InfoFD is the fd number of the pipe bwrap reports its init pid
	// on, grounded on the teacher's `--info-fd`/bwrapInfo JSON handshake.
	InfoFD int

	HelperPath  string
	SandboxArgv []string

	// DebugExtraArgs are raw arguments appended by `run --debug-bwrap-args`,
	// after every other bwrap option and just before `--`, the helper
	// path, and the sandbox argv (spec.md §4.8).
	DebugExtraArgs []string
}

// BuildArgv assembles the full bwrap argv in a deterministic order:
// base flags, unshare/share toggles, bind ops in merger order, env ops,
// seccomp, --info-fd, helper socket inheritance, DebugExtraArgs, `--`,
// helper executable path, sandbox argv. FD-data bindings (FileWrite's
// --file) are not a separate block after the env ops: each is emitted
// in place among the bind ops, in merger order.
//
// Equal (cfg, plan) pairs always produce a byte-equal []string, per
// spec.md §8 invariant 1 — no map iteration reaches the output without
// first being sorted.
func BuildArgv(cfg *config.BwrapConfig, plan ArgvPlan) []string {
	var argv []string

	// Base flags, grounded on the teacher's hugbox fdArgs prelude
	// (--dev, --tmpfs /tmp, bind the profile dir at the fixed sandbox
	// home, --setenv HOME), generalized to the instance's home directory
	// rather than one hardcoded browser profile home.
	argv = append(argv,
		"--die-with-parent",
		"--unshare-pid",
		"--proc", "/proc",
		"--dev", "/dev",
		"--tmpfs", "/tmp",
		"--bind", plan.HostHomeDir, plan.SandboxHomeDir,
		"--setenv", "HOME", plan.SandboxHomeDir,
		"--chdir", plan.SandboxHomeDir,
	)

	// Unshare/share toggles. Net, ipc, uts, and cgroup are unshared
	// unless a service's Share op opts the sandbox back in (the same
	// default posture as the teacher's unshareOpts). --unshare-pid above
	// is mandatory (bwrap cleanup depends on it, per the teacher's
	// hugbox.toArgs panic on a false pid field) so ShareKind.SharePID is
	// never re-emitted here even if a service's Share op disagrees.
	shares := collectShares(cfg.BindOps)
	for _, kind := range sortedShareKinds(shares) {
		if kind == bindop.SharePID {
			continue
		}
		if shares[kind] {
			argv = append(argv, fmt.Sprintf("--unshare-%s", kind))
		}
	}

	// Bind ops, in merger order, with each FileWrite's --file emitted
	// in place; env ops are collected for their own block below, and
	// shares were already folded into the unshare block above.
	var fileWriteIdx int
	var envOps []bindop.BindOp
	for _, op := range cfg.BindOps {
		switch v := op.(type) {
		case bindop.Bind:
			flag := "--bind"
			if v.ReadOnly {
				flag = "--ro-bind"
			}
			if v.Try {
				flag += "-try"
			}
			argv = append(argv, flag, v.Src, v.DstPath)
		case bindop.DevBind:
			flag := "--dev-bind"
			if v.Try {
				flag += "-try"
			}
			argv = append(argv, flag, v.Src, v.DstPath)
		case bindop.DirCreate:
			argv = append(argv, "--dir", v.DstPath)
		case bindop.SymlinkCreate:
			argv = append(argv, "--symlink", v.Target, v.At)
		case bindop.FileWrite:
			if fileWriteIdx < len(plan.FileWriteFDs) {
				argv = append(argv, "--file", fmt.Sprintf("%d", plan.FileWriteFDs[fileWriteIdx]), v.DstPath)
			}
			fileWriteIdx++
		case bindop.EnvSet, bindop.EnvUnset:
			envOps = append(envOps, op)
		case bindop.Share:
			// Already folded into the unshare block above.
		case bindop.Arg:
			argv = append(argv, v.Raw)
		}
	}

	// Env ops, as their own block per spec.md §4.5 step 5.
	for _, op := range envOps {
		switch v := op.(type) {
		case bindop.EnvSet:
			argv = append(argv, "--setenv", v.Key, v.Value)
		case bindop.EnvUnset:
			argv = append(argv, "--unsetenv", v.Key)
		}
	}

	// FD-data bindings (FileWrite already emitted --file above with its
	// assigned fd, in bind-op order; nothing further needed here).

	if plan.SeccompFD != 0 {
		argv = append(argv, "--seccomp", fmt.Sprintf("%d", plan.SeccompFD))
	}
	if plan.InfoFD != 0 {
		argv = append(argv, "--info-fd", fmt.Sprintf("%d", plan.InfoFD))
	}

	argv = append(argv, "--setenv", HelperFDEnv, fmt.Sprintf("%d", plan.HelperFD))

	argv = append(argv, plan.DebugExtraArgs...)

	argv = append(argv, "--")
	argv = append(argv, plan.HelperPath)
	argv = append(argv, plan.SandboxArgv...)

	return argv
}

// collectShares folds every Share op into the final unshare decision
// per namespace kind, starting from the isolated defaults and letting
// later ops win (merger order is the composition order, so the debug
// service can always flip a namespace back).
func collectShares(ops []bindop.BindOp) map[bindop.ShareKind]bool {
	out := map[bindop.ShareKind]bool{
		bindop.ShareNET:    true,
		bindop.ShareIPC:    true,
		bindop.ShareUTS:    true,
		bindop.ShareCGROUP: true,
	}
	for _, op := range ops {
		if s, ok := op.(bindop.Share); ok {
			out[s.Kind] = s.Unshare
		}
	}
	return out
}

func sortedShareKinds(m map[bindop.ShareKind]bool) []bindop.ShareKind {
	kinds := make([]bindop.ShareKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DefaultSandboxArgv resolves the command to run when the CLI's `run`
// invocation supplies no ARGS, from the common service's
// executable_name option (spec.md §4.5 step 11). extraArgs (a `run`
// invocation's own ARGS) always win when non-empty.
func DefaultSandboxArgv(cfg *config.BwrapConfig, extraArgs []string) ([]string, error) {
	if len(extraArgs) > 0 {
		return extraArgs, nil
	}
	if len(cfg.ExecutableNames) == 0 {
		return nil, fmt.Errorf("runner: no executable configured and no ARGS given")
	}
	return cfg.ExecutableNames, nil
}
