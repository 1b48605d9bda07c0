// Package bindop defines the atomic directives a Service emits and the
// config merger folds into a BwrapConfig.
package bindop

import "fmt"

// ShareKind identifies a namespace that can be shared with the host
// (the default) or unshared into a private copy.
type ShareKind int

const (
	ShareNET ShareKind = iota
	ShareUSER
	SharePID
	ShareUTS
	ShareIPC
	ShareCGROUP
	ShareTIME
)

func (k ShareKind) String() string {
	switch k {
	case ShareNET:
		return "net"
	case ShareUSER:
		return "user"
	case SharePID:
		return "pid"
	case ShareUTS:
		return "uts"
	case ShareIPC:
		return "ipc"
	case ShareCGROUP:
		return "cgroup"
	case ShareTIME:
		return "time"
	default:
		return "unknown"
	}
}

// BindOp is an atomic directive to the container runner. Concrete types
// below are the only implementations; the merger type-switches over them.
type BindOp interface {
	// Dst returns the sandbox-side path this op touches, or "" if the op
	// has no destination path (EnvSet/EnvUnset/Share/Arg).
	Dst() string
	isBindOp()
}

// Bind binds a host path into the sandbox.
type Bind struct {
	Src      string
	DstPath  string
	ReadOnly bool
	// Try makes a missing Src a silent no-op instead of a fatal
	// composition error.
	Try bool
}

func (b Bind) Dst() string { return b.DstPath }
func (Bind) isBindOp()     {}

// DevBind binds a device node into the sandbox.
type DevBind struct {
	Src     string
	DstPath string
	Try     bool
}

func (d DevBind) Dst() string { return d.DstPath }
func (DevBind) isBindOp()     {}

// DirCreate makes a directory (mkdir -p semantics) inside the sandbox.
type DirCreate struct {
	DstPath string
}

func (d DirCreate) Dst() string { return d.DstPath }
func (DirCreate) isBindOp()     {}

// SymlinkCreate creates a symlink inside the sandbox pointing at Target.
type SymlinkCreate struct {
	Target string
	At     string
}

func (s SymlinkCreate) Dst() string { return s.At }
func (SymlinkCreate) isBindOp()     {}

// FileWrite feeds Bytes to bwrap on a dedicated fd, bound at DstPath.
type FileWrite struct {
	DstPath string
	Bytes   []byte
}

func (f FileWrite) Dst() string { return f.DstPath }
func (FileWrite) isBindOp()     {}

// EnvSet sets an environment variable in the sandbox.
type EnvSet struct {
	Key   string
	Value string
}

func (EnvSet) Dst() string { return "" }
func (EnvSet) isBindOp()   {}

// EnvUnset removes an environment variable from the sandbox's view.
type EnvUnset struct {
	Key string
}

func (EnvUnset) Dst() string { return "" }
func (EnvUnset) isBindOp()   {}

// Share toggles an unshare-or-share namespace decision.
type Share struct {
	Kind    ShareKind
	Unshare bool
}

func (Share) Dst() string { return "" }
func (Share) isBindOp()   {}

// Arg is an escape hatch for the debug service: a raw bwrap argument
// passed through verbatim.
type Arg struct {
	Raw string
}

func (Arg) Dst() string { return "" }
func (Arg) isBindOp()   {}

// SeccompRule is one rule contributed by a service to the seccomp
// compiler (C2). Action is either "allow" or "deny"; Errno is only
// meaningful for "deny".
type SeccompRule struct {
	Syscall string
	Action  SeccompAction
	Errno   string // e.g. "EPERM"; empty means the compiler default.
}

type SeccompAction int

const (
	SeccompDeny SeccompAction = iota
	SeccompAllow
)

func (r SeccompRule) String() string {
	if r.Action == SeccompAllow {
		return fmt.Sprintf("allow(%s)", r.Syscall)
	}
	if r.Errno != "" {
		return fmt.Sprintf("deny(%s,%s)", r.Syscall, r.Errno)
	}
	return fmt.Sprintf("deny(%s)", r.Syscall)
}

// DBusBus distinguishes the session bus from the system bus; a DBusRule's
// placement (which proxy instance it applies to) is orthogonal to the
// rule's own shape.
type DBusBus int

const (
	DBusSession DBusBus = iota
	DBusSystem
)

// DBusRuleKind is the tag of a DBusRule.
type DBusRuleKind int

const (
	DBusTalk DBusRuleKind = iota
	DBusOwn
	DBusCall
	DBusBroadcast
	DBusFilter
)

// DBusRule is a single xdg-dbus-proxy policy line.
type DBusRule struct {
	Bus  DBusBus
	Kind DBusRuleKind
	// Name is a bus name or wildcard (e.g. "org.freedesktop.Notifications",
	// "org.mpris.MediaPlayer2.*"). Unused for DBusFilter.
	Name string
	// Rule is the call/broadcast path rule, e.g. "/org/freedesktop/*@*".
	// Only meaningful for DBusCall and DBusBroadcast.
	Rule string
}

// NamespaceKind enumerates the kernel namespace ceilings the
// namespaces_limits service can cap.
type NamespaceKind int

const (
	NSUser NamespaceKind = iota
	NSMount
	NSPid
	NSIpc
	NSNet
	NSTime
	NSUts
	NSCgroup
)

func (k NamespaceKind) ProcName() string {
	switch k {
	case NSUser:
		return "max_user_namespaces"
	case NSMount:
		return "max_mnt_namespaces"
	case NSPid:
		return "max_pid_namespaces"
	case NSIpc:
		return "max_ipc_namespaces"
	case NSNet:
		return "max_net_namespaces"
	case NSTime:
		return "max_time_namespaces"
	case NSUts:
		return "max_uts_namespaces"
	case NSCgroup:
		return "max_cgroup_namespaces"
	default:
		return ""
	}
}

// Hook is a post-setup action that requires a running child, e.g.
// attaching slirp4netns to the sandbox's init pid. Receiving the init
// pid and the sandbox's runtime dir is enough for every known built-in
// service.
type Hook struct {
	Name string
	Run  func(initPid int, runtimeDir string) error
}
