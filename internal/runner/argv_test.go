package runner

import (
	"reflect"
	"strings"
	"testing"

	"github.com/bubblejail/bubblejail/internal/bindop"
	"github.com/bubblejail/bubblejail/internal/config"
)

func testPlan() ArgvPlan {
	return ArgvPlan{
		HostHomeDir:    "/data/instances/t1/home",
		SandboxHomeDir: "/home/sandbox",
		HelperFD:       7,
		InfoFD:         6,
		HelperPath:     "/usr/bin/bubblejail-helper",
		SandboxArgv:    []string{"/bin/true"},
	}
}

func TestBuildArgvDeterministic(t *testing.T) {
	cfg := &config.BwrapConfig{
		BindOps: []bindop.BindOp{
			bindop.Bind{Src: "/etc/fonts", DstPath: "/etc/fonts", ReadOnly: true},
			bindop.EnvSet{Key: "LANG", Value: "C"},
			bindop.DirCreate{DstPath: "/run/user/1000"},
		},
	}
	first := BuildArgv(cfg, testPlan())
	second := BuildArgv(cfg, testPlan())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("equal inputs produced different argv:\n%v\n%v", first, second)
	}
}

func TestBuildArgvOrdering(t *testing.T) {
	cfg := &config.BwrapConfig{
		BindOps: []bindop.BindOp{
			bindop.EnvSet{Key: "LANG", Value: "C"},
			bindop.Bind{Src: "/srv", DstPath: "/srv"},
		},
	}
	plan := testPlan()
	plan.DebugExtraArgs = []string{"--new-session"}
	argv := BuildArgv(cfg, plan)
	joined := strings.Join(argv, " ")

	bindIdx := strings.Index(joined, "--bind /srv /srv")
	envIdx := strings.Index(joined, "--setenv LANG C")
	sepIdx := strings.Index(joined, " -- ")
	debugIdx := strings.Index(joined, "--new-session")
	if bindIdx < 0 || envIdx < 0 || sepIdx < 0 || debugIdx < 0 {
		t.Fatalf("argv missing expected pieces: %v", argv)
	}
	// Bind ops come before the env-op block, debug extras come after
	// everything else but still before the -- separator.
	if bindIdx > envIdx {
		t.Errorf("bind op emitted after env ops: %v", argv)
	}
	if debugIdx > sepIdx {
		t.Errorf("debug extra args emitted after --: %v", argv)
	}
	if argv[len(argv)-1] != "/bin/true" || argv[len(argv)-2] != plan.HelperPath {
		t.Errorf("argv must end with helper path + sandbox argv, got %v", argv[len(argv)-2:])
	}
}

func TestBuildArgvUnsharesByDefault(t *testing.T) {
	argv := BuildArgv(&config.BwrapConfig{}, testPlan())
	joined := strings.Join(argv, " ")
	for _, flag := range []string{"--unshare-pid", "--unshare-net", "--unshare-ipc", "--unshare-uts", "--unshare-cgroup"} {
		if !strings.Contains(joined, flag) {
			t.Errorf("expected %s in default argv: %v", flag, argv)
		}
	}
}

func TestBuildArgvShareOpRestoresNetwork(t *testing.T) {
	cfg := &config.BwrapConfig{
		BindOps: []bindop.BindOp{bindop.Share{Kind: bindop.ShareNET, Unshare: false}},
	}
	argv := BuildArgv(cfg, testPlan())
	for _, a := range argv {
		if a == "--unshare-net" {
			t.Fatalf("Share{NET, share} should suppress --unshare-net: %v", argv)
		}
	}
}

func TestBuildArgvSeccompFD(t *testing.T) {
	plan := testPlan()
	plan.SeccompFD = 5
	argv := BuildArgv(&config.BwrapConfig{}, plan)
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "--seccomp 5") {
		t.Errorf("expected --seccomp 5 in %v", argv)
	}
	if !strings.Contains(joined, "--info-fd 6") {
		t.Errorf("expected --info-fd 6 in %v", argv)
	}
}

func TestDefaultSandboxArgv(t *testing.T) {
	cfg := &config.BwrapConfig{ExecutableNames: []string{"firefox", "--private-window"}}

	got, err := DefaultSandboxArgv(cfg, nil)
	if err != nil {
		t.Fatalf("DefaultSandboxArgv: %v", err)
	}
	if !reflect.DeepEqual(got, cfg.ExecutableNames) {
		t.Errorf("got %v, want configured executable", got)
	}

	got, err = DefaultSandboxArgv(cfg, []string{"/bin/echo", "hi"})
	if err != nil {
		t.Fatalf("DefaultSandboxArgv with args: %v", err)
	}
	if got[0] != "/bin/echo" {
		t.Errorf("explicit ARGS must win, got %v", got)
	}

	if _, err := DefaultSandboxArgv(&config.BwrapConfig{}, nil); err == nil {
		t.Error("expected error with no executable and no ARGS")
	}
}
