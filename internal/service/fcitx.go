package service

import (
	"os"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// fcitxService mirrors ibusService for the Fcitx5 input method and
// conflicts with it, per spec.md's documented conflict pair.
type fcitxService struct {
	Base
}

func registerFcitx(r *Registry) {
	r.register("fcitx", Schema{}, func(Options) (Service, error) {
		return &fcitxService{Base: Base{
			name:      "fcitx",
			pretty:    "Fcitx",
			desc:      "Access to the Fcitx input method",
			conflicts: []string{"ibus"},
		}}, nil
	})
}

func (fcitxService) IterBindOps() []bindop.BindOp {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return nil
	}
	return []bindop.BindOp{
		bindop.Bind{Src: runtimeDir + "/fcitx", DstPath: runtimeDir + "/fcitx", Try: true},
		bindop.EnvSet{Key: "GTK_IM_MODULE", Value: "fcitx"},
		bindop.EnvSet{Key: "QT_IM_MODULE", Value: "fcitx"},
		bindop.EnvSet{Key: "XMODIFIERS", Value: "@im=fcitx"},
	}
}
