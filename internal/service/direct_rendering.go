package service

import (
	"os"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// directRenderingService binds GPU device nodes in, grounded on the
// teacher's FileExists-gated optional device/path binds (hugbox.go's
// roBind(..., true) idiom) applied to the device and sysfs paths
// spec.md §4.1 names: /dev/dri, the nvidia sysfs module-state file, and
// the cpu sysfs tree some Mesa/driver probes read.
type directRenderingService struct {
	Base
}

func registerDirectRendering(r *Registry) {
	r.register("direct_rendering", Schema{}, func(Options) (Service, error) {
		return &directRenderingService{Base: Base{name: "direct_rendering", pretty: "Direct rendering", desc: "Access to GPU acceleration"}}, nil
	})
}

func (directRenderingService) IterBindOps() []bindop.BindOp {
	var ops []bindop.BindOp
	if _, err := os.Stat("/dev/dri"); err == nil {
		ops = append(ops, bindop.DevBind{Src: "/dev/dri", DstPath: "/dev/dri", Try: true})
	}
	if _, err := os.Stat("/sys/module/nvidia/initstate"); err == nil {
		ops = append(ops,
			bindop.Bind{Src: "/sys/module/nvidia/initstate", DstPath: "/sys/module/nvidia/initstate", ReadOnly: true, Try: true},
			bindop.DevBind{Src: "/dev/nvidiactl", DstPath: "/dev/nvidiactl", Try: true},
			bindop.DevBind{Src: "/dev/nvidia0", DstPath: "/dev/nvidia0", Try: true},
		)
	}
	if _, err := os.Stat("/sys/devices/system/cpu"); err == nil {
		ops = append(ops, bindop.Bind{Src: "/sys/devices/system/cpu", DstPath: "/sys/devices/system/cpu", ReadOnly: true, Try: true})
	}
	return ops
}
