package service

import (
	"os"
	"path/filepath"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// waylandService binds the host Wayland display socket, grounded on the
// same runtime-dir-socket-bind shape the teacher uses for PulseAudio in
// pulse.go (locate the socket under XDG_RUNTIME_DIR, bind it in, and set
// the matching environment variable).
type waylandService struct {
	Base
}

func registerWayland(r *Registry) {
	r.register("wayland", Schema{}, func(Options) (Service, error) {
		return &waylandService{Base: Base{name: "wayland", pretty: "Wayland", desc: "Access to the host Wayland compositor"}}, nil
	})
}

func (waylandService) IterBindOps() []bindop.BindOp {
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return nil
	}
	sockPath := filepath.Join(runtimeDir, display)
	return []bindop.BindOp{
		bindop.Bind{Src: sockPath, DstPath: sockPath, Try: true},
		bindop.EnvSet{Key: "WAYLAND_DISPLAY", Value: display},
	}
}
