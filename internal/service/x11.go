package service

import (
	"os"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// x11Service grants access to the host X11 socket, grounded on the
// teacher's internal/sandbox/x11 package (DISPLAY parsing, X11 socket
// directory bind, Xauthority handling) reduced to the bind-and-env-pass
// shape spec.md's service model calls for. The XAUTHORITY file is bound
// read-only as-is; x11Service has no startup hook and does not rewrite
// it.
type x11Service struct {
	Base
}

func registerX11(r *Registry) {
	schema := Schema{}
	r.register("x11", schema, func(Options) (Service, error) {
		return &x11Service{Base: Base{
			name:      "x11",
			pretty:    "X11",
			desc:      "Access to the host X11 server",
			conflicts: nil,
		}}, nil
	})
}

const x11SockDir = "/tmp/.X11-unix"

func (x11Service) IterBindOps() []bindop.BindOp {
	ops := []bindop.BindOp{
		bindop.Bind{Src: x11SockDir, DstPath: x11SockDir, Try: true},
	}
	if display := os.Getenv("DISPLAY"); display != "" {
		ops = append(ops, bindop.EnvSet{Key: "DISPLAY", Value: display})
	}
	if xauth := os.Getenv("XAUTHORITY"); xauth != "" {
		ops = append(ops, bindop.Bind{Src: xauth, DstPath: xauth, ReadOnly: true, Try: true})
		ops = append(ops, bindop.EnvSet{Key: "XAUTHORITY", Value: xauth})
	}
	return ops
}
