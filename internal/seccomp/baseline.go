package seccomp

import "github.com/bubblejail/bubblejail/internal/bindop"

// BaselineVersion identifies the revision of the default deny list below.
// Exposed as a queryable constant rather than hard-coded in the compiler
// per spec.md §9 ("the baseline list has drifted across source versions").
const BaselineVersion = 1

// baselineSyscalls are the namespace-creation and privilege-adjacent
// syscalls denied by default, cross-checked against
// other_examples/canonical-snapd's interfaces/seccomp/template.go
// default deny posture for the same syscall families.
var baselineSyscalls = []string{
	"unshare",
	"clone3", // new-user-namespace creation is filtered at the clone3 level
	"perf_event_open",
	"bpf",
	"userfaultfd",
	"ptrace",
}

// Baseline returns the default deny rule set for the given baseline
// version. Only BaselineVersion is currently defined; future revisions
// can add cases without breaking callers that pinned an older version.
func Baseline(version int) []bindop.SeccompRule {
	switch version {
	case 1:
		rules := make([]bindop.SeccompRule, 0, len(baselineSyscalls))
		for _, name := range baselineSyscalls {
			rules = append(rules, bindop.SeccompRule{
				Syscall: name,
				Action:  bindop.SeccompDeny,
				Errno:   "EPERM",
			})
		}
		return rules
	default:
		return nil
	}
}
