package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// rootShareService binds arbitrary host paths (rooted at "/" rather
// than $HOME) into the same path inside the sandbox, grounded on the
// teacher's h.roBind(path, path, ...) identity-path idiom used
// throughout application.go for /usr/share/* binds. Per spec.md §4.2
// this service is merged first among non-common services specifically
// so its binds may be a superset a later service's bind narrows.
type rootShareService struct {
	Base
	paths        []string
	readOnlyOnly bool
}

func registerRootShare(r *Registry) {
	schema := Schema{
		{Name: "paths", Kind: KindStringList, Default: []string{}, Description: "absolute host paths to share verbatim"},
		{Name: "read_only", Kind: KindBool, Default: true, Description: "share paths read-only"},
	}
	r.register("root_share", schema, func(opts Options) (Service, error) {
		return &rootShareService{
			Base:         Base{name: "root_share", pretty: "Root directories", desc: "Share absolute host paths verbatim"},
			paths:        opts.StringList("paths"),
			readOnlyOnly: opts.Bool("read_only"),
		}, nil
	})
}

func (s *rootShareService) IterBindOps() []bindop.BindOp {
	var ops []bindop.BindOp
	for _, p := range s.paths {
		ops = append(ops, bindop.Bind{Src: p, DstPath: p, ReadOnly: s.readOnlyOnly})
	}
	return ops
}
