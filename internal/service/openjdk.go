package service

import (
	"os"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// openjdkService binds a host JVM install in for Java applications,
// grounded on the teacher's standardLibs block in hugbox.go.run() which
// conditionally binds /usr/lib, /usr/lib64 etc. only when the embedder
// opted in — the same "only bind this large read-only tree if asked"
// shape, applied to a JDK install directory instead of libc.
type openjdkService struct {
	Base
	javaHome string
}

func registerOpenJDK(r *Registry) {
	schema := Schema{
		{Name: "java_home", Kind: KindString, Default: "", Description: "override for JAVA_HOME; empty autodetects /usr/lib/jvm/default"},
	}
	r.register("openjdk", schema, func(opts Options) (Service, error) {
		return &openjdkService{
			Base:     Base{name: "openjdk", pretty: "OpenJDK", desc: "Access to a host Java runtime"},
			javaHome: opts.String("java_home"),
		}, nil
	})
}

func (o *openjdkService) IterBindOps() []bindop.BindOp {
	home := o.javaHome
	if home == "" {
		home = "/usr/lib/jvm/default"
	}
	if _, err := os.Stat(home); err != nil {
		return nil
	}
	return []bindop.BindOp{
		bindop.Bind{Src: home, DstPath: home, ReadOnly: true, Try: true},
		bindop.EnvSet{Key: "JAVA_HOME", Value: home},
	}
}
