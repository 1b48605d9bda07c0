package service

import (
	"sort"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// commonService implements the always-first [common] table (spec.md §6),
// grounded on the teacher's hugbox.go setenv/file/setupDbus helpers and
// application.go's handling of the browser's executable + FONTCONFIG
// environment overrides.
type commonService struct {
	Base
	executableNames []string
	filterDiskSync  bool
	dbusNames       []string
	shareLocalTime  bool
	environment     map[string]string
}

func registerCommon(r *Registry) {
	schema := Schema{
		{Name: "executable_name", Kind: KindStringList, Default: []string{}, Description: "command to run inside the sandbox"},
		{Name: "filter_disk_sync", Kind: KindBool, Default: false, Description: "deny fsync/sync family via seccomp"},
		{Name: "dbus_name", Kind: KindStringList, Default: []string{}, Description: "well-known D-Bus names this instance may own"},
		{Name: "share_local_time", Kind: KindBool, Default: false, Deprecated: true, Description: "deprecated, accepted but a no-op"},
		{Name: "environment", Kind: KindStringMap, Default: map[string]string{}, Description: "extra environment variables"},
	}
	r.register("common", schema, func(opts Options) (Service, error) {
		return &commonService{
			Base:            Base{name: "common", pretty: "Common", desc: "Settings common to every sandbox"},
			executableNames: opts.StringList("executable_name"),
			filterDiskSync:  opts.Bool("filter_disk_sync"),
			dbusNames:       opts.StringList("dbus_name"),
			shareLocalTime:  opts.Bool("share_local_time"),
			environment:     opts.StringMap("environment"),
		}, nil
	})
}

// ExecutableNames exposes the configured command for the Runner (the
// instance's default argv, spec.md §4.5 step 11), since
// executable_name is not expressed as a bind op.
func (c *commonService) ExecutableNames() []string { return c.executableNames }

func (c *commonService) IterBindOps() []bindop.BindOp {
	ops := []bindop.BindOp{
		bindop.EnvSet{Key: "XDG_RUNTIME_DIR", Value: SandboxRuntimeDir()},
		bindop.DirCreate{DstPath: SandboxRuntimeDir()},
	}
	keys := make([]string, 0, len(c.environment))
	for k := range c.environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ops = append(ops, bindop.EnvSet{Key: k, Value: c.environment[k]})
	}
	if c.shareLocalTime {
		// Accepted, deprecated, and a no-op per spec.md §9's Open
		// Question decision recorded in DESIGN.md.
	}
	return ops
}

func (c *commonService) IterDBusRules() []bindop.DBusRule {
	rules := make([]bindop.DBusRule, 0, len(c.dbusNames))
	for _, name := range c.dbusNames {
		rules = append(rules, bindop.DBusRule{Bus: bindop.DBusSession, Kind: bindop.DBusOwn, Name: name})
	}
	return rules
}

func (c *commonService) IterSeccompRules() []bindop.SeccompRule {
	if !c.filterDiskSync {
		return nil
	}
	var rules []bindop.SeccompRule
	for _, name := range []string{"sync", "fsync", "fdatasync", "syncfs"} {
		rules = append(rules, bindop.SeccompRule{Syscall: name, Action: bindop.SeccompDeny, Errno: "EROFS"})
	}
	return rules
}
