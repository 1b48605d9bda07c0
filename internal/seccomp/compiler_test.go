package seccomp

import (
	"testing"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

func TestMergeRulesLastWriterWins(t *testing.T) {
	rules := []bindop.SeccompRule{
		{Syscall: "unshare", Action: bindop.SeccompDeny, Errno: "EPERM"},
		{Syscall: "ptrace", Action: bindop.SeccompDeny, Errno: "EPERM"},
		{Syscall: "unshare", Action: bindop.SeccompAllow},
	}
	merged := mergeRules(rules)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged rules, got %d", len(merged))
	}
	var foundUnshare bool
	for _, r := range merged {
		if r.Syscall == "unshare" {
			foundUnshare = true
			if r.Action != bindop.SeccompAllow {
				t.Errorf("expected later Allow rule to win for unshare, got %v", r.Action)
			}
		}
	}
	if !foundUnshare {
		t.Fatal("unshare rule missing from merge result")
	}
}

func TestNegativeActionPrefersExplicitErrno(t *testing.T) {
	rules := []bindop.SeccompRule{
		{Syscall: "unshare", Action: bindop.SeccompAllow},
		{Syscall: "fsync", Action: bindop.SeccompDeny, Errno: "EROFS"},
	}
	if got := negativeAction(rules); got != "EROFS" {
		t.Errorf("negativeAction = %q, want EROFS", got)
	}
	if got := negativeAction(nil); got != "EPERM" {
		t.Errorf("negativeAction fallback = %q, want EPERM", got)
	}
}

func TestBaselineVersioned(t *testing.T) {
	rules := Baseline(BaselineVersion)
	if len(rules) == 0 {
		t.Fatal("expected a non-empty baseline rule set")
	}
	for _, r := range rules {
		if r.Action != bindop.SeccompDeny {
			t.Errorf("baseline rule %q should deny by default, got %v", r.Syscall, r.Action)
		}
	}
	if got := Baseline(999); got != nil {
		t.Errorf("expected nil for unknown baseline version, got %v", got)
	}
}
