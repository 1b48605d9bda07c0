package service

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/bubblejail/bubblejail/internal/bindop"
	"github.com/bubblejail/bubblejail/internal/bjerror"
)

// startNetworkHelper spawns a userspace network stack process and
// watches it briefly: a helper that dies within the settle window
// failed its own setup (bad pid, unusable namespace) and must fail
// sandbox startup rather than leave the instance silently offline.
// The wait goroutine keeps reaping the helper at its eventual exit.
func startNetworkHelper(name string, args ...string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return bjerror.New(bjerror.KindDependencyMissing, name)
	}
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("exited during setup: %w", err)
		}
		return fmt.Errorf("exited during setup")
	case <-time.After(300 * time.Millisecond):
		return nil
	}
}

// slirp4netnsService gives the sandbox a private, unprivileged
// userspace network stack via slirp4netns attached to the bwrap
// init process's network namespace, grounded on the teacher's
// network.go spawnSlirp() which does the same "launch slirp4netns
// --netns-type=path /proc/<pid>/ns/net tap0" dance against the
// sandboxed child's pid. Conflicts with network (shares the host
// net namespace instead) and with pasta_network (the other
// userspace stack), and with namespaces_limits whatever limits that
// service sets.
type slirp4netnsService struct {
	Base
	cidr string
}

func registerSlirp4netns(r *Registry) {
	schema := Schema{
		{Name: "cidr", Kind: KindString, Default: "10.0.2.0/24", Description: "private subnet handed to the guest tap interface"},
	}
	r.register("slirp4netns", schema, func(opts Options) (Service, error) {
		return &slirp4netnsService{
			Base: Base{
				name:      "slirp4netns",
				pretty:    "User-mode network (slirp4netns)",
				desc:      "Unprivileged userspace network stack",
				conflicts: []string{"network", "pasta_network", "namespaces_limits"},
			},
			cidr: opts.String("cidr"),
		}, nil
	})
}

func (s *slirp4netnsService) IterBindOps() []bindop.BindOp {
	return []bindop.BindOp{bindop.Share{Kind: bindop.ShareNET, Unshare: true}}
}

func (s *slirp4netnsService) IterStartupHooks() []bindop.Hook {
	return []bindop.Hook{{
		Name: "slirp4netns",
		Run: func(initPid int, runtimeDir string) error {
			return startNetworkHelper("slirp4netns",
				"--configure",
				"--mtu=65520",
				"--disable-host-loopback",
				fmt.Sprintf("--cidr=%s", s.cidr),
				fmt.Sprintf("%d", initPid),
				"tap0",
			)
		},
	}}
}
