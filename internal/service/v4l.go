package service

import (
	"path/filepath"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// v4lService grants access to Video4Linux device nodes (webcams,
// capture cards), same glob-and-DevBind shape as joystickService.
type v4lService struct {
	Base
}

func registerV4L(r *Registry) {
	r.register("v4l", Schema{}, func(Options) (Service, error) {
		return &v4lService{Base: Base{name: "v4l", pretty: "Video4Linux", desc: "Access to webcams and capture devices"}}, nil
	})
}

func (v4lService) IterBindOps() []bindop.BindOp {
	var ops []bindop.BindOp
	matches, _ := filepath.Glob("/dev/video*")
	for _, m := range matches {
		ops = append(ops, bindop.DevBind{Src: m, DstPath: m, Try: true})
	}
	mediaMatches, _ := filepath.Glob("/dev/media*")
	for _, m := range mediaMatches {
		ops = append(ops, bindop.DevBind{Src: m, DstPath: m, Try: true})
	}
	return ops
}
