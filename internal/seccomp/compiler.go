// Package seccomp compiles a rule set (spec.md §3's SeccompRule, §4.6)
// into a BPF filter program, grounded on the teacher's seccomp.go which
// already depends on github.com/twtiger/gosecco to load and compile
// pre-written rule assets. Here the source text is generated from the
// merged rule set instead of read from a static asset.
package seccomp

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/twtiger/gosecco"
	"github.com/twtiger/gosecco/parser"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// UnknownSyscallWarning is reported for a syscall name the compiler could
// not resolve on the current architecture. Per spec.md §4.6 this is a
// warning, not a compile failure, since architecture-diverse kernels may
// not expose every name.
type UnknownSyscallWarning struct {
	Syscall string
}

func (w UnknownSyscallWarning) String() string {
	return fmt.Sprintf("seccomp: unknown syscall %q on this architecture, skipping", w.Syscall)
}

// Compile merges rules (explicit per-service Allow/Deny overriding the
// baseline deny list) into a single BPF program and writes it to fd.
// fd is closed before Compile returns, matching the teacher's
// installSeccomp which writes and closes in one call.
//
// Ordering among equal rules is irrelevant per spec.md §8 invariant 1;
// rules are still sorted by syscall name before compilation so that
// equal inputs always produce byte-equal output (the determinism
// invariant).
func Compile(fd *os.File, rules []bindop.SeccompRule) (warnings []UnknownSyscallWarning, err error) {
	defer fd.Close()

	merged := mergeRules(rules)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Syscall < merged[j].Syscall })

	settings := gosecco.SeccompSettings{
		DefaultPositiveAction: "allow",
		DefaultNegativeAction: negativeAction(merged),
		DefaultPolicyAction:   "allow",
		ActionOnX32:           "kill",
		ActionOnAuditFailure:  "kill",
	}

	// An allow rule compiles to an always-true body and a deny rule to
	// an always-false one, so a denied syscall takes the filter's
	// negative action (the errno return above) while everything else
	// falls through to the default-allow policy.
	var lines []string
	for _, r := range merged {
		var line string
		if r.Action == bindop.SeccompAllow {
			line = fmt.Sprintf("%s: 1", r.Syscall)
		} else {
			line = fmt.Sprintf("%s: 0", r.Syscall)
		}
		if !resolves(line, settings) {
			warnings = append(warnings, UnknownSyscallWarning{Syscall: r.Syscall})
			continue
		}
		lines = append(lines, line)
	}

	source := &parser.StringSource{
		Name:    "bubblejail-merged-seccomp",
		Content: strings.Join(lines, "\n"),
	}

	bpf, err := gosecco.PrepareSource(source, settings)
	if err != nil {
		return warnings, fmt.Errorf("seccomp: compile: %w", err)
	}

	const bpfInstructionLimit = 0xffff
	if size := len(bpf); size > bpfInstructionLimit {
		return warnings, fmt.Errorf("seccomp: filter program too big: %d instructions (limit %d)", size, bpfInstructionLimit)
	}
	for _, instr := range bpf {
		if err := binary.Write(fd, binary.LittleEndian, instr); err != nil {
			return warnings, fmt.Errorf("seccomp: write: %w", err)
		}
	}
	return warnings, nil
}

// resolves probes a single rule line against the compiler so a syscall
// name the current architecture's table does not carry degrades into a
// skip-with-warning instead of failing the whole filter (spec.md §4.6).
func resolves(line string, settings gosecco.SeccompSettings) bool {
	probe := &parser.StringSource{Name: "probe", Content: line}
	_, err := gosecco.PrepareSource(probe, settings)
	return err == nil
}

// negativeAction picks the errno returned for denied syscalls. The
// filter carries one negative action, so the first deny rule in the
// given order that names an errno decides it for every denied syscall;
// EPERM is the fallback. Baseline denies use EPERM, so a later deny
// asking for another errno (common's filter_disk_sync uses EROFS) does
// not get it whenever a baseline deny comes first.
func negativeAction(rules []bindop.SeccompRule) string {
	for _, r := range rules {
		if r.Action == bindop.SeccompDeny && r.Errno != "" {
			return r.Errno
		}
	}
	return "EPERM"
}

// mergeRules applies "explicit per-service Allow overrides the baseline
// deny" (spec.md §4.2): later rules for the same syscall win, and the
// baseline is considered to come first.
func mergeRules(rules []bindop.SeccompRule) []bindop.SeccompRule {
	order := make([]string, 0, len(rules))
	bySyscall := make(map[string]bindop.SeccompRule, len(rules))
	for _, r := range rules {
		if _, seen := bySyscall[r.Syscall]; !seen {
			order = append(order, r.Syscall)
		}
		bySyscall[r.Syscall] = r
	}
	out := make([]bindop.SeccompRule, 0, len(order))
	for _, name := range order {
		out = append(out, bySyscall[name])
	}
	return out
}
