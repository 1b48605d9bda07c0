package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// networkService grants full host networking by not unsharing the net
// namespace, grounded on the teacher's unshareOpts.toArgs (hugbox.go),
// which unshares net by default and only skips --unshare-net when the
// embedder asks for real networking.
type networkService struct {
	Base
}

func registerNetwork(r *Registry) {
	r.register("network", Schema{}, func(Options) (Service, error) {
		return &networkService{Base: Base{
			name:      "network",
			pretty:    "Network",
			desc:      "Full, unfiltered access to the host network",
			conflicts: []string{"slirp4netns", "pasta_network"},
		}}, nil
	})
}

func (networkService) IterBindOps() []bindop.BindOp {
	return []bindop.BindOp{
		bindop.Share{Kind: bindop.ShareNET, Unshare: false},
		bindop.Bind{Src: "/etc/resolv.conf", DstPath: "/etc/resolv.conf", ReadOnly: true, Try: true},
	}
}
