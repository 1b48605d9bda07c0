package service

import (
	"os"
	"path/filepath"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// homeShareService binds directories from the real $HOME into the
// sandbox's HOME, grounded on the teacher's application.go pattern of
// binding specific subdirectories of the real browser profile in by
// name (h.bind(realDesktopDir, desktopDir, false)). A missing path is a
// fatal composition error per spec.md scenario C — Bind.Try is left
// false so the merger's BindSourceMissing check fires.
type homeShareService struct {
	Base
	homePaths []string
}

func registerHomeShare(r *Registry) {
	schema := Schema{
		{Name: "home_paths", Kind: KindStringList, Default: []string{}, Description: "paths under $HOME to share into the sandbox"},
	}
	r.register("home_share", schema, func(opts Options) (Service, error) {
		return &homeShareService{
			Base:      Base{name: "home_share", pretty: "Home directories", desc: "Share specific real-home directories into the sandbox"},
			homePaths: opts.StringList("home_paths"),
		}, nil
	})
}

func (h *homeShareService) IterBindOps() []bindop.BindOp {
	realHome := os.Getenv("HOME")
	var ops []bindop.BindOp
	for _, rel := range h.homePaths {
		src := filepath.Join(realHome, rel)
		dst := filepath.Join(SandboxHome, rel)
		ops = append(ops, bindop.Bind{Src: src, DstPath: dst})
	}
	return ops
}
