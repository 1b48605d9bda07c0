package service

import (
	"fmt"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// pastaNetworkService is the passt/pasta alternative to slirp4netns:
// same private-network-namespace-plus-userspace-stack shape, started
// against the init pid's network namespace instead of a tap device.
// Mutually exclusive with network and slirp4netns.
type pastaNetworkService struct {
	Base
}

func registerPastaNetwork(r *Registry) {
	r.register("pasta_network", Schema{}, func(Options) (Service, error) {
		return &pastaNetworkService{Base: Base{
			name:      "pasta_network",
			pretty:    "User-mode network (pasta)",
			desc:      "Unprivileged userspace network stack (pasta)",
			conflicts: []string{"network", "slirp4netns"},
		}}, nil
	})
}

func (pastaNetworkService) IterBindOps() []bindop.BindOp {
	return []bindop.BindOp{bindop.Share{Kind: bindop.ShareNET, Unshare: true}}
}

func (pastaNetworkService) IterStartupHooks() []bindop.Hook {
	return []bindop.Hook{{
		Name: "pasta",
		Run: func(initPid int, runtimeDir string) error {
			return startNetworkHelper("pasta", "--config-net", fmt.Sprintf("%d", initPid))
		},
	}}
}
