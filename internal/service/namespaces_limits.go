package service

import (
	"fmt"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// namespacesLimitsService caps how many additional nested namespaces
// the sandboxed process tree may create, wired to internal/nslimits at
// runner startup via IterNamespaceLimits(). A zero cap for NEWNET is
// only useful once a userspace network service has already set up the
// single namespace the sandbox needs, hence the conflict with
// slirp4netns, which declares it on its side; pasta_network does not
// conflict with this service.
type namespacesLimitsService struct {
	Base
	limits map[bindop.NamespaceKind]int
}

// namespaceOptions maps each option key to the namespace kind it caps.
// The keys are the short names the services.toml grammar uses
// ([namespaces_limits] user=0 mount=0), not the kernel's
// max_*_namespaces sysctl names, which stay an internal/nslimits
// concern.
var namespaceOptions = []struct {
	key  string
	kind bindop.NamespaceKind
}{
	{"user", bindop.NSUser},
	{"mount", bindop.NSMount},
	{"pid", bindop.NSPid},
	{"ipc", bindop.NSIpc},
	{"net", bindop.NSNet},
	{"time", bindop.NSTime},
	{"uts", bindop.NSUts},
	{"cgroup", bindop.NSCgroup},
}

func registerNamespacesLimits(r *Registry) {
	schema := make(Schema, 0, len(namespaceOptions))
	for _, o := range namespaceOptions {
		schema = append(schema, OptionSpec{
			Name:        o.key,
			Kind:        KindInt,
			Default:     0,
			Description: fmt.Sprintf("ceiling on nested %s namespaces; 0 denies, -1 means unlimited", o.key),
			Min:         -1,
			Max:         1 << 30,
		})
	}
	r.register("namespaces_limits", schema, func(opts Options) (Service, error) {
		limits := make(map[bindop.NamespaceKind]int, len(namespaceOptions))
		for _, o := range namespaceOptions {
			limits[o.kind] = opts.Int(o.key)
		}
		return &namespacesLimitsService{
			Base: Base{
				name:   "namespaces_limits",
				pretty: "Namespace limits",
				desc:   "Restrict the sandbox's ability to create further nested namespaces",
			},
			limits: limits,
		}, nil
	})
}

func (s *namespacesLimitsService) IterNamespaceLimits() map[bindop.NamespaceKind]int {
	return s.limits
}
