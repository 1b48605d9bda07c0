// Package nslimits applies namespace-creation ceilings (spec.md §4.7)
// inside a running sandbox's user namespace. Grounded on the teacher's
// direct-syscall style (rlimit.go's raw syscall.Setrlimit) and its
// fork/exec + pipe handshake pattern (hugbox.go.run()), generalized to
// a short-lived forked helper that joins the target namespace and exits
// with a status reflecting success, so the parent never has its own
// namespace polluted.
package nslimits

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// Unlimited is the sentinel value meaning "no ceiling" in spec.md §4.7's
// −1-maps-to-platform-maximum convention.
const Unlimited = -1

// platformMaximum is used in place of Unlimited: the largest value a
// 32-bit int sysctl such as max_*_namespaces accepts.
const platformMaximum = 1<<31 - 1

// Apply opens the child's user namespace by pid, joins it, and writes
// each limit to /proc/sys/user/max_*_namespaces. Runs in a re-executed
// forked helper (RunSelfApply) so the caller's own namespace membership is
// never touched; Apply is the parent-side entry point and always runs
// out of process.
//
// Platform support is declared only for x86_64 per spec.md §4.7.
func Apply(pid int, limits map[bindop.NamespaceKind]int) error {
	if runtime.GOARCH != "amd64" {
		return fmt.Errorf("nslimits: platform %s is not supported", runtime.GOARCH)
	}
	if len(limits) == 0 {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("nslimits: resolve self executable: %w", err)
	}

	args := []string{selfApplyFlag, strconv.Itoa(pid)}
	for kind, value := range limits {
		args = append(args, fmt.Sprintf("%s=%d", kind.ProcName(), value))
	}

	cmd := exec.Command(exe, args...)
	cmd.Stderr = os.Stderr
	cmd.Stdout = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("nslimits: helper: %w", err)
	}
	return nil
}

// selfApplyFlag is the hidden argv[1] the nslimits helper re-exec
// recognizes; cmd/bubblejail's main() checks for it before cobra parses
// any arguments, the same way many setuid-helper patterns short-circuit
// before a full CLI framework spins up.
const selfApplyFlag = "--bubblejail-nslimits-helper"

// IsSelfApplyInvocation reports whether argv (os.Args) requests the
// namespace-limits helper re-exec path.
func IsSelfApplyInvocation(argv []string) bool {
	return len(argv) >= 2 && argv[1] == selfApplyFlag
}

// RunSelfApply is the body of the re-exec'd helper: join the target
// user namespace and write every requested ceiling. It always calls
// os.Exit itself, mirroring the teacher's "helper exits with status
// reflecting success" contract from spec.md §4.7.
func RunSelfApply(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "nslimits: missing pid argument")
		os.Exit(1)
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "nslimits: invalid pid %q: %v\n", args[0], err)
		os.Exit(1)
	}

	runtime.LockOSThread() // Setns must not be observed by other goroutines on this thread.

	nsPath := fmt.Sprintf("/proc/%d/ns/user", pid)
	fd, err := unix.Open(nsPath, unix.O_RDONLY, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nslimits: open %s: %v\n", nsPath, err)
		os.Exit(1)
	}
	defer unix.Close(fd)

	if err := unix.Setns(fd, unix.CLONE_NEWUSER); err != nil {
		fmt.Fprintf(os.Stderr, "nslimits: setns: %v\n", err)
		os.Exit(1)
	}

	for _, kv := range args[1:] {
		name, value, err := splitProcValue(kv)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nslimits: %v\n", err)
			os.Exit(1)
		}
		if err := writeSysctl(name, value); err != nil {
			fmt.Fprintf(os.Stderr, "nslimits: write %s: %v\n", name, err)
			os.Exit(1)
		}
	}
	os.Exit(0)
}

func splitProcValue(kv string) (name string, value int, err error) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			name = kv[:i]
			value, err = strconv.Atoi(kv[i+1:])
			return
		}
	}
	return "", 0, fmt.Errorf("malformed proc-name=value pair %q", kv)
}

func writeSysctl(procName string, value int) error {
	if value == Unlimited {
		value = platformMaximum
	}
	path := "/proc/sys/user/" + procName
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strconv.Itoa(value))
	return err
}
