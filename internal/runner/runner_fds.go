package runner

import (
	"net"
	"os"

	"github.com/bubblejail/bubblejail/internal/bindop"
	"github.com/bubblejail/bubblejail/internal/cliutil"
	"github.com/bubblejail/bubblejail/internal/config"
	"github.com/bubblejail/bubblejail/internal/seccomp"
	"github.com/bubblejail/bubblejail/internal/service"
)

// fdAssembly is the result of laying out every pipe and duplicated
// socket bwrap will inherit, in the exact order that determines their
// fd numbers inside the child (3, 4, 5, ... by ExtraFiles position,
// the same convention os/exec documents).
type fdAssembly struct {
	extraFiles []*os.File

	fileWriteFDs []int
	writeEnds    []*os.File
	pending      [][]byte

	seccompFD    int
	seccompWrite *os.File

	infoFD    int
	infoRead  *os.File
	infoWrite *os.File

	helperFD int
	lnFile   *os.File
}

// assembleFDs walks cfg once to find every FileWrite op (each needs its
// own pipe), opens one more pipe for the seccomp program if any rules
// exist, one for bwrap's --info-fd handshake, and duplicates the
// already-listening helper socket, grounded on the teacher's hugbox.run()
// ExtraFiles sequencing (args pipe, per-file pipes, seccomp pipe, info
// pipe, in that fixed order).
func assembleFDs(ln *net.UnixListener, cfg *config.BwrapConfig) (*fdAssembly, error) {
	a := &fdAssembly{}

	for _, op := range cfg.BindOps {
		fw, ok := op.(bindop.FileWrite)
		if !ok {
			continue
		}
		r, w, err := os.Pipe()
		if err != nil {
			a.closeAll()
			return nil, err
		}
		a.extraFiles = append(a.extraFiles, r)
		a.fileWriteFDs = append(a.fileWriteFDs, 3+len(a.extraFiles)-1)
		a.writeEnds = append(a.writeEnds, w)
		a.pending = append(a.pending, fw.Bytes)
	}

	if len(cfg.SeccompRules) > 0 {
		r, w, err := os.Pipe()
		if err != nil {
			a.closeAll()
			return nil, err
		}
		a.extraFiles = append(a.extraFiles, r)
		a.seccompFD = 3 + len(a.extraFiles) - 1
		a.seccompWrite = w
	}

	infoR, infoW, err := os.Pipe()
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.extraFiles = append(a.extraFiles, infoW)
	a.infoFD = 3 + len(a.extraFiles) - 1
	a.infoRead = infoR
	a.infoWrite = infoW

	lnFile, err := ln.File()
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.extraFiles = append(a.extraFiles, lnFile)
	a.helperFD = 3 + len(a.extraFiles) - 1
	a.lnFile = lnFile

	return a, nil
}

func (a *fdAssembly) closeAll() {
	for _, f := range a.extraFiles {
		f.Close()
	}
	for _, f := range a.writeEnds {
		f.Close()
	}
}

// flushPendingWrites writes every FileWrite op's bytes to its pipe and
// compiles the seccomp program to its pipe, in a background goroutine
// exactly like the teacher's hugbox.run() anonymous goroutine, since
// bwrap itself blocks reading these pipes as part of its own startup
// and writing them synchronously before cmd.Start() would deadlock.
func flushPendingWrites(writeEnds []*os.File, pending [][]byte, seccompWrite *os.File, seccompRules []bindop.SeccompRule) {
	for i, w := range writeEnds {
		w.Write(pending[i])
		w.Close()
	}
	if seccompWrite != nil {
		if warnings, err := seccomp.Compile(seccompWrite, seccompRules); err == nil {
			for _, w := range warnings {
				cliutil.Debugf("%s", w) // logged, not fatal here.
			}
		}
	}
}

// buildDryRunArgv mirrors Start's non-DryRun fd assignment with
// placeholder fd numbers (3, 4, 5, ...) in the same order, since
// `--dry-run` never actually spawns bwrap or opens real pipes/sockets
// (spec.md §4.8).
func buildDryRunArgv(cfg *config.BwrapConfig, opts Options, bwrapPath, helperPath, homeDir string) ([]string, error) {
	next := 3
	var fileWriteFDs []int
	for _, op := range cfg.BindOps {
		if _, ok := op.(bindop.FileWrite); ok {
			fileWriteFDs = append(fileWriteFDs, next)
			next++
		}
	}
	seccompFD := 0
	if len(cfg.SeccompRules) > 0 {
		seccompFD = next
		next++
	}
	infoFD := next
	next++
	helperFD := next

	plan := ArgvPlan{
		HostHomeDir:    homeDir,
		SandboxHomeDir: service.SandboxHome,
		FileWriteFDs:   fileWriteFDs,
		SeccompFD:      seccompFD,
		InfoFD:         infoFD,
		HelperFD:       helperFD,
		HelperPath:     helperPath,
		SandboxArgv:    opts.SandboxArgv,
		DebugExtraArgs: opts.DebugBwrapArgs,
	}
	argv := append([]string{bwrapPath}, BuildArgv(cfg, plan)...)
	return argv, nil
}
