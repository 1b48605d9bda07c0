package service

import (
	"path/filepath"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// joystickService grants access to /dev/input joystick/gamepad device
// nodes, grounded on the same optional DevBind shape as
// direct_rendering (the teacher's roBind(..., true) idiom).
type joystickService struct {
	Base
}

func registerJoystick(r *Registry) {
	r.register("joystick", Schema{}, func(Options) (Service, error) {
		return &joystickService{Base: Base{name: "joystick", pretty: "Joystick", desc: "Access to joystick and gamepad devices"}}, nil
	})
}

func (joystickService) IterBindOps() []bindop.BindOp {
	var ops []bindop.BindOp
	matches, _ := filepath.Glob("/dev/input/js*")
	for _, m := range matches {
		ops = append(ops, bindop.DevBind{Src: m, DstPath: m, Try: true})
	}
	eventMatches, _ := filepath.Glob("/dev/input/event*")
	for _, m := range eventMatches {
		ops = append(ops, bindop.DevBind{Src: m, DstPath: m, Try: true})
	}
	return ops
}
