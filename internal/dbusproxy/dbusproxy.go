// Package dbusproxy supervises an xdg-dbus-proxy child process that
// filters D-Bus traffic between the sandbox and the host session/
// system buses (spec.md §4.3, C7). Grounded on the teacher's
// hugbox.go run() subprocess-plus-readiness-pipe pattern (there used
// for bwrap's own --info-fd handshake), applied here to a different
// external binary with its own readiness signal: xdg-dbus-proxy
// closes a passed-in fd for writing once its proxy sockets are ready
// to accept connections.
package dbusproxy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bubblejail/bubblejail/internal/bindop"
	"github.com/bubblejail/bubblejail/internal/bjerror"
)

// shutdownGrace is the T_stop-style grace period before escalating to
// SIGKILL, per spec.md §4.5's shutdown sequence.
const shutdownGrace = 5 * time.Second

// Proxy supervises the running xdg-dbus-proxy instance(s) for one
// sandbox: real xdg-dbus-proxy filters exactly one bus address to one
// socket per process, so a sandbox using both the session and system
// bus gets two independently supervised processes here.
type Proxy struct {
	procs         []*exec.Cmd
	SessionSocket string
	SystemSocket  string
}

// flagFor translates one DBusRule into its xdg-dbus-proxy policy
// argument, bit-exact per spec.md §4.3.
func flagFor(r bindop.DBusRule) string {
	switch r.Kind {
	case bindop.DBusTalk:
		return fmt.Sprintf("--talk=%s", r.Name)
	case bindop.DBusOwn:
		return fmt.Sprintf("--own=%s", r.Name)
	case bindop.DBusCall:
		return fmt.Sprintf("--call=%s=%s", r.Name, r.Rule)
	case bindop.DBusBroadcast:
		return fmt.Sprintf("--broadcast=%s=%s", r.Name, r.Rule)
	case bindop.DBusFilter:
		return "--filter"
	default:
		return ""
	}
}

// Start creates the proxy sockets inside dir (a 0700 per-run temp
// directory owned by the Runner) and spawns one xdg-dbus-proxy process
// per non-empty bus group (session, system), each filtering exactly the
// one bus address to the one socket real xdg-dbus-proxy expects. Start
// blocks until every spawned proxy signals readiness by closing the
// write end of its readiness pipe (the parent reads the other end until
// EOF), or returns
// bjerror.KindDBusProxyStartupFailed if any child exits first; any
// already-started proxy is torn down before returning an error.
func Start(dir string, rules []bindop.DBusRule) (*Proxy, error) {
	sessionRules, systemRules := splitByBus(rules)

	p := &Proxy{}

	if len(sessionRules) > 0 {
		sessionAddr := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
		if sessionAddr == "" {
			return nil, bjerror.New(bjerror.KindDependencyMissing, "DBUS_SESSION_BUS_ADDRESS not set")
		}
		p.SessionSocket = filepath.Join(dir, "session_bus_socket")
		cmd, err := spawnOne(sessionAddr, p.SessionSocket, sessionRules)
		if err != nil {
			p.Stop()
			return nil, err
		}
		p.procs = append(p.procs, cmd)
	}
	if len(systemRules) > 0 {
		p.SystemSocket = filepath.Join(dir, "system_bus_socket")
		cmd, err := spawnOne("unix:path=/run/dbus/system_bus_socket", p.SystemSocket, systemRules)
		if err != nil {
			p.Stop()
			return nil, err
		}
		p.procs = append(p.procs, cmd)
	}

	return p, nil
}

// spawnOne starts a single xdg-dbus-proxy process for one bus address/
// socket pair and blocks until it signals readiness.
func spawnOne(busAddr, sockPath string, rules []bindop.DBusRule) (*exec.Cmd, error) {
	argv := []string{busAddr, sockPath}
	for _, r := range rules {
		argv = append(argv, flagFor(r))
	}

	// A missing xdg-dbus-proxy binary is DependencyMissing (exit 3),
	// distinct from the binary being present but exiting non-zero during
	// its own startup (DBusProxyStartupFailed, exit 4) — spec.md §7/§8
	// scenario E.
	proxyPath, err := exec.LookPath("xdg-dbus-proxy")
	if err != nil {
		return nil, bjerror.New(bjerror.KindDependencyMissing, "xdg-dbus-proxy")
	}

	readyR, readyW, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(proxyPath, append(argv, fmt.Sprintf("--fd=%d", 3))...)
	cmd.ExtraFiles = []*os.File{readyW}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		readyR.Close()
		readyW.Close()
		return nil, bjerror.Wrap(bjerror.KindDBusProxyStartupFailed, "exec xdg-dbus-proxy", err)
	}
	readyW.Close()

	buf := make([]byte, 1)
	n, err := readyR.Read(buf)
	readyR.Close()
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		killAndWait(cmd)
		return nil, bjerror.Wrap(bjerror.KindDBusProxyStartupFailed, "readiness pipe", err)
	}
	if !processRunning(cmd) {
		killAndWait(cmd)
		return nil, bjerror.New(bjerror.KindDBusProxyStartupFailed, "xdg-dbus-proxy exited during startup")
	}

	return cmd, nil
}

// Running reports whether every spawned proxy process is still alive,
// non-blocking, the same syscall.Wait4(WNOHANG) idiom as
// runner.Process.Running.
func (p *Proxy) Running() bool {
	if len(p.procs) == 0 {
		return false
	}
	for _, cmd := range p.procs {
		if !processRunning(cmd) {
			return false
		}
	}
	return true
}

func processRunning(cmd *exec.Cmd) bool {
	if cmd == nil || cmd.Process == nil {
		return false
	}
	wpid, err := syscall.Wait4(cmd.Process.Pid, nil, syscall.WNOHANG, nil)
	if err != nil {
		return false
	}
	return wpid == 0
}

func killAndWait(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
	cmd.Wait()
}

// Stop terminates every spawned proxy process, escalating from SIGTERM
// to SIGKILL if any does not exit promptly, per spec.md §4.5's shutdown
// sequence.
func (p *Proxy) Stop() {
	var pending []*exec.Cmd
	for _, cmd := range p.procs {
		if cmd == nil || cmd.Process == nil {
			continue
		}
		cmd.Process.Signal(syscall.SIGTERM)
		pending = append(pending, cmd)
	}
	if len(pending) == 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		for _, cmd := range pending {
			cmd.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		for _, cmd := range pending {
			cmd.Process.Kill()
		}
		<-done
	}
}

func splitByBus(rules []bindop.DBusRule) (session, system []bindop.DBusRule) {
	for _, r := range rules {
		if r.Bus == bindop.DBusSystem {
			system = append(system, r)
		} else {
			session = append(session, r)
		}
	}
	return session, system
}
