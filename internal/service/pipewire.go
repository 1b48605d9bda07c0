package service

import (
	"os"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// pipewireService binds the PipeWire session socket in, the same
// $XDG_RUNTIME_DIR socket-bind shape as waylandService and
// pulseAudioService but pointed at pipewire-0 instead of a
// compositor/PA socket.
type pipewireService struct {
	Base
}

func registerPipewire(r *Registry) {
	r.register("pipewire", Schema{}, func(Options) (Service, error) {
		return &pipewireService{Base: Base{name: "pipewire", pretty: "PipeWire", desc: "Access to the PipeWire media server"}}, nil
	})
}

func (pipewireService) IterBindOps() []bindop.BindOp {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return nil
	}
	sock := runtimeDir + "/pipewire-0"
	return []bindop.BindOp{
		bindop.Bind{Src: sock, DstPath: sock, Try: true},
	}
}
