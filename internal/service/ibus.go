package service

import (
	"os"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// ibusService wires up IBus input method support, grounded on the
// wayland/x11 services' XDG_RUNTIME_DIR socket-bind shape but pointed
// at ibus's own socket path. Conflicts with fcitx per spec.md's
// documented input-method conflict pair.
type ibusService struct {
	Base
}

func registerIBus(r *Registry) {
	r.register("ibus", Schema{}, func(Options) (Service, error) {
		return &ibusService{Base: Base{
			name:      "ibus",
			pretty:    "IBus",
			desc:      "Access to the IBus input method",
			conflicts: []string{"fcitx"},
		}}, nil
	})
}

func (ibusService) IterBindOps() []bindop.BindOp {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return nil
	}
	return []bindop.BindOp{
		bindop.Bind{Src: runtimeDir + "/ibus", DstPath: runtimeDir + "/ibus", Try: true},
		bindop.EnvSet{Key: "GTK_IM_MODULE", Value: "ibus"},
		bindop.EnvSet{Key: "QT_IM_MODULE", Value: "ibus"},
		bindop.EnvSet{Key: "XMODIFIERS", Value: "@im=ibus"},
	}
}
