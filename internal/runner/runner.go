// Package runner orchestrates one sandbox's startup, readiness,
// lifetime, and cleanup (spec.md §4.5, C9). Its state machine is
// forward-only: Composing -> DbusProxyStarting -> HelperSocketListening
// -> BwrapLaunched -> HelperHandshake -> PostInitHooks -> Running ->
// Terminating -> Terminated. Any startup failure jumps straight to
// Terminating with the originating error captured, and every acquired
// resource (sockets, pipes, subprocesses, temp dir) is released before
// the error is returned to the caller — spec.md §4.5/§9's "never
// partial-start" guarantee.
//
// Directly adapted from the teacher's hugbox.go run() (argv assembly
// order, extra-file pipe plumbing, ticker+timeout pattern) and
// sandbox/process/process.go (Process.Kill/Wait/Running/SetInitPid).
package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/bubblejail/bubblejail/internal/bindop"
	"github.com/bubblejail/bubblejail/internal/bjerror"
	"github.com/bubblejail/bubblejail/internal/cliutil"
	"github.com/bubblejail/bubblejail/internal/config"
	"github.com/bubblejail/bubblejail/internal/dbusproxy"
	"github.com/bubblejail/bubblejail/internal/helper"
	"github.com/bubblejail/bubblejail/internal/instance"
	"github.com/bubblejail/bubblejail/internal/nslimits"
	"github.com/bubblejail/bubblejail/internal/service"
)

// State is one node of the Runner's forward-only state machine.
type State int

const (
	StateComposing State = iota
	StateDBusProxyStarting
	StateHelperSocketListening
	StateBwrapLaunched
	StateHelperHandshake
	StatePostInitHooks
	StateRunning
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateComposing:
		return "Composing"
	case StateDBusProxyStarting:
		return "DbusProxyStarting"
	case StateHelperSocketListening:
		return "HelperSocketListening"
	case StateBwrapLaunched:
		return "BwrapLaunched"
	case StateHelperHandshake:
		return "HelperHandshake"
	case StatePostInitHooks:
		return "PostInitHooks"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

const (
	dbusProxyTimeout = 5 * time.Second
	helloTimeout     = 10 * time.Second
	bwrapStopGrace   = 5 * time.Second
)

// Options carries everything about one `run` invocation the Runner
// needs beyond the merged BwrapConfig (spec.md §4.8).
type Options struct {
	// SandboxArgv is the run command's own ARGS; empty means "use the
	// common service's executable_name" (spec.md §4.5 step 11).
	SandboxArgv    []string
	Wait           bool
	AttachStdio    bool
	DryRun         bool
	DebugBwrapArgs []string

	// BwrapPath/HelperPath override PATH lookup, mainly for tests.
	BwrapPath  string
	HelperPath string
}

// Runner owns one sandbox's temp dir, sockets, and child processes for
// its entire lifetime. No globals: every piece of per-run state lives
// on the value returned by Start.
type Runner struct {
	inst *instance.Instance
	cfg  *config.BwrapConfig
	opts Options

	mu    sync.Mutex
	state State

	tempDir    string
	runtimeDir string
	sockPath   string

	proxy    *dbusproxy.Proxy
	helperLn *net.UnixListener
	process  *Process
	client   *helper.Client

	waitDone chan int
	once     sync.Once

	dryRunArgv []string
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// State returns the Runner's current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// DryRunArgv returns the fully expanded bwrap argv computed by a
// DryRun Start call (spec.md §4.8's `--dry-run`).
func (r *Runner) DryRunArgv() []string { return r.dryRunArgv }

type bwrapInfo struct {
	Pid int `json:"child-pid"`
}

// Start runs spec.md §4.5 steps 1-10: compose the bwrap invocation,
// spawn dbus-proxy and bwrap, perform the helper HELLO handshake, and
// run every service's startup hook. On success the Runner is left in
// StateRunning with no command executed yet; the caller sends the
// initial command via RunCommand (step 11).
//
// If opts.DryRun, Start stops after building the argv (step 1) and
// returns with DryRunArgv populated; no process is spawned.
func Start(inst *instance.Instance, cfg *config.BwrapConfig, opts Options) (*Runner, error) {
	r := &Runner{inst: inst, cfg: cfg, opts: opts, state: StateComposing}

	runtimeDir, err := inst.RuntimeDir()
	if err != nil {
		return nil, err
	}
	r.runtimeDir = runtimeDir

	bwrapPath := opts.BwrapPath
	if bwrapPath == "" {
		bwrapPath, err = exec.LookPath("bwrap")
		if err != nil {
			return nil, bjerror.New(bjerror.KindDependencyMissing, "bwrap")
		}
	}
	helperPath := opts.HelperPath
	if helperPath == "" {
		helperPath, err = resolveHelperPath()
		if err != nil {
			return nil, bjerror.New(bjerror.KindDependencyMissing, "bubblejail-helper")
		}
	}

	if opts.DryRun {
		argv, err := buildDryRunArgv(cfg, opts, bwrapPath, helperPath, inst.HomeDir())
		if err != nil {
			return nil, err
		}
		r.dryRunArgv = argv
		r.state = StateTerminated
		return r, nil
	}

	tempDir, err := os.MkdirTemp(runtimeDir, "run-")
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(tempDir, 0700); err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}
	r.tempDir = tempDir

	ok := false
	defer func() {
		if !ok {
			r.releasePartial()
		}
	}()

	if len(cfg.DBusRules) > 0 {
		r.setState(StateDBusProxyStarting)
		proxy, err := startDBusProxyTimeout(tempDir, cfg, dbusProxyTimeout)
		if err != nil {
			return nil, err
		}
		r.proxy = proxy

		// The proxy listens on sockets inside the runner's temp dir;
		// bind them where sandboxed clients look for the real buses.
		if proxy.SessionSocket != "" {
			busPath := filepath.Join(service.SandboxRuntimeDir(), "bus")
			cfg.BindOps = append(cfg.BindOps,
				bindop.Bind{Src: proxy.SessionSocket, DstPath: busPath},
				bindop.EnvSet{Key: "DBUS_SESSION_BUS_ADDRESS", Value: "unix:path=" + busPath},
			)
		}
		if proxy.SystemSocket != "" {
			cfg.BindOps = append(cfg.BindOps,
				bindop.Bind{Src: proxy.SystemSocket, DstPath: "/run/dbus/system_bus_socket"})
		}
	}

	r.setState(StateHelperSocketListening)
	sockPath := filepath.Join(runtimeDir, "helper.sock")
	os.Remove(sockPath) // stale socket from a crashed prior run
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(sockPath, 0600); err != nil {
		ln.Close()
		return nil, err
	}
	r.helperLn = ln.(*net.UnixListener)
	r.sockPath = sockPath

	fds, err := assembleFDs(r.helperLn, cfg)
	if err != nil {
		return nil, err
	}

	plan := ArgvPlan{
		HostHomeDir:    inst.HomeDir(),
		SandboxHomeDir: service.SandboxHome,
		RuntimeDir:     runtimeDir,
		FileWriteFDs:   fds.fileWriteFDs,
		SeccompFD:      fds.seccompFD,
		HelperFD:       fds.helperFD,
		InfoFD:         fds.infoFD,
		HelperPath:     helperPath,
		SandboxArgv:    opts.SandboxArgv,
		DebugExtraArgs: opts.DebugBwrapArgs,
	}
	argv := BuildArgv(cfg, plan)

	cmd := exec.Command(bwrapPath, argv...)
	cmd.ExtraFiles = fds.extraFiles
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	r.setState(StateBwrapLaunched)
	if err := cmd.Start(); err != nil {
		fds.closeAll()
		fds.infoRead.Close()
		return nil, bjerror.Wrap(bjerror.KindDependencyMissing, "exec bwrap", err)
	}
	r.process = NewProcess(cmd)
	r.waitDone = make(chan int, 1)
	go func() { r.waitDone <- r.process.Wait() }()

	// The child now holds its own dup'd copies; release ours. lnFile and
	// infoWrite are elements of extraFiles, so this loop covers them too.
	for _, f := range fds.extraFiles {
		f.Close()
	}

	go flushPendingWrites(fds.writeEnds, fds.pending, fds.seccompWrite, cfg.SeccompRules)

	initPid, err := readBwrapInfo(fds.infoRead)
	fds.infoRead.Close()
	if err != nil {
		return nil, bjerror.Wrap(bjerror.KindHelperHandshakeTimeout, "bwrap info-fd handshake", err)
	}
	r.process.SetInitPid(initPid)

	if len(cfg.NamespaceLimits) > 0 {
		if err := nslimits.Apply(initPid, cfg.NamespaceLimits); err != nil {
			return nil, bjerror.Wrap(bjerror.KindNamespaceLimitFailed, "apply namespace limits", err)
		}
	}

	// Slirp/pasta and every other service's startup hook (spec.md §4.5
	// steps 8 and 10 collapsed into one merger-ordered pass: both need
	// only the init pid and runtime dir, and nothing observable depends
	// on running them in two separate batches).
	for _, hook := range cfg.StartupHooks {
		if err := hook.Run(initPid, runtimeDir); err != nil {
			var bjErr *bjerror.Error
			if errors.As(err, &bjErr) {
				return nil, err
			}
			return nil, bjerror.Wrap(bjerror.KindNetworkStackFailed, hook.Name, err)
		}
	}

	r.setState(StateHelperHandshake)
	client, err := dialAndHello(sockPath, helloTimeout)
	if err != nil {
		return nil, bjerror.Wrap(bjerror.KindHelperHandshakeTimeout, "helper HELLO", err)
	}
	r.client = client

	r.setState(StatePostInitHooks)
	r.setState(StateRunning)
	ok = true
	return r, nil
}

// RunCommand sends one RUN frame to the helper (spec.md §4.5 step 11
// for the first call against a freshly Started Runner; spec.md §4.5's
// re-entry case for any later call on the same Runner). A re-entrant
// `run` from another process does not go through a Runner; it dials
// the helper socket and calls helper.Client.Run directly.
func (r *Runner) RunCommand(id int, argv []string, env map[string]string, wait bool) (*helper.Message, error) {
	return r.client.Run(id, argv, env, wait)
}

// WaitBwrap blocks until the underlying bwrap process exits and
// returns its exit code, without initiating shutdown itself.
func (r *Runner) WaitBwrap() int {
	return <-r.waitDone
}

// Shutdown executes spec.md §4.5's shutdown sequence exactly once
// (invariant 6: idempotent), regardless of how many times or from how
// many goroutines it is called.
func (r *Runner) Shutdown() {
	r.once.Do(func() {
		r.setState(StateTerminating)
		if r.client != nil {
			r.client.Shutdown()
			r.client.Close()
		}

		bwrapExit := r.waitForBwrapExit()

		if r.proxy != nil {
			r.proxy.Stop()
		}
		if r.helperLn != nil {
			r.helperLn.Close()
		}
		os.Remove(r.sockPath)
		os.RemoveAll(r.tempDir)

		if bwrapExit != 0 {
			cliutil.Notify("bubblejail", fmt.Sprintf("%s exited with status %d", r.inst.Name, bwrapExit))
		}
		r.setState(StateTerminated)
	})
}

// waitForBwrapExit waits up to bwrapStopGrace for the helper's own
// SHUTDOWN-triggered exit to propagate to bwrap, escalating first to
// SIGTERM and then SIGKILL against both bwrap and its init pid. Only
// Signal (never the field-nilling Process.Kill) is used here so it
// never races the single Wait() goroutine started in Start.
func (r *Runner) waitForBwrapExit() int {
	if r.process == nil || r.waitDone == nil {
		return 0
	}
	select {
	case code := <-r.waitDone:
		return code
	case <-time.After(bwrapStopGrace):
	}

	r.process.Signal(syscall.SIGTERM)
	if pid := r.process.InitPid(); pid != 0 {
		syscall.Kill(pid, syscall.SIGTERM)
	}
	select {
	case code := <-r.waitDone:
		return code
	case <-time.After(2 * time.Second):
	}

	r.process.Signal(syscall.SIGKILL)
	if pid := r.process.InitPid(); pid != 0 {
		syscall.Kill(pid, syscall.SIGKILL)
	}
	return <-r.waitDone
}

// killBwrapSync is used only on startup-failure paths, after cmd.Start
// has already handed bwrap's reaping to the Wait() goroutine started in
// Start. It must never call Process.Kill directly: that method reaps
// the child itself via os.Process.Wait, which would race the same
// reap happening concurrently inside the Wait() goroutine's cmd.Wait.
// Signaling and then draining r.waitDone leaves exactly one goroutine
// doing the actual reap.
func (r *Runner) killBwrapSync() {
	if r.process == nil || r.waitDone == nil {
		return
	}
	r.process.Signal(syscall.SIGKILL)
	if pid := r.process.InitPid(); pid != 0 {
		syscall.Kill(pid, syscall.SIGKILL)
	}
	<-r.waitDone
}

// releasePartial reverses every effect of a Start call that did not
// reach `ok`, per spec.md §4.5/§9's never-partial-start guarantee.
func (r *Runner) releasePartial() {
	r.setState(StateTerminating)
	if r.process != nil {
		r.killBwrapSync()
	}
	if r.proxy != nil {
		r.proxy.Stop()
	}
	if r.helperLn != nil {
		r.helperLn.Close()
	}
	if r.sockPath != "" {
		os.Remove(r.sockPath)
	}
	if r.tempDir != "" {
		os.RemoveAll(r.tempDir)
	}
	r.setState(StateTerminated)
}

func readBwrapInfo(r *os.File) (int, error) {
	var info bwrapInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return 0, err
	}
	return info.Pid, nil
}

func dialAndHello(sockPath string, timeout time.Duration) (*helper.Client, error) {
	type result struct {
		client *helper.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		client, err := helper.Dial(sockPath)
		if err != nil {
			ch <- result{err: err}
			return
		}
		if _, err := client.Hello(); err != nil {
			client.Close()
			ch <- result{err: err}
			return
		}
		ch <- result{client: client}
	}()
	select {
	case res := <-ch:
		return res.client, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("runner: timed out waiting for helper HELLO")
	}
}

func startDBusProxyTimeout(dir string, cfg *config.BwrapConfig, timeout time.Duration) (*dbusproxy.Proxy, error) {
	type result struct {
		proxy *dbusproxy.Proxy
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := dbusproxy.Start(dir, cfg.DBusRules)
		ch <- result{proxy: p, err: err}
	}()
	select {
	case res := <-ch:
		return res.proxy, res.err
	case <-time.After(timeout):
		return nil, bjerror.New(bjerror.KindDBusProxyStartupFailed, "xdg-dbus-proxy did not signal readiness in time")
	}
}

func resolveHelperPath() (string, error) {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "bubblejail-helper")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return exec.LookPath("bubblejail-helper")
}
