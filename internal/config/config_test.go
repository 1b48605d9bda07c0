package config

import (
	"testing"

	"github.com/bubblejail/bubblejail/internal/service"
)

func build(t *testing.T, r *service.Registry, name string, table map[string]interface{}) service.Service {
	t.Helper()
	svc, _, err := r.Build(name, table)
	if err != nil {
		t.Fatalf("Build(%s): %v", name, err)
	}
	return svc
}

func TestMergeOrdersCommonFirstAndDebugLast(t *testing.T) {
	r := service.NewRegistry()
	active := []service.Service{
		build(t, r, "debug", map[string]interface{}{}),
		build(t, r, "x11", map[string]interface{}{}),
		build(t, r, "common", map[string]interface{}{}),
	}
	ordered, err := orderServices(active)
	if err != nil {
		t.Fatalf("orderServices: %v", err)
	}
	if len(ordered) != 3 {
		t.Fatalf("got %d services, want 3", len(ordered))
	}
	if ordered[0].Name() != "common" {
		t.Errorf("first service = %q, want common", ordered[0].Name())
	}
	if ordered[len(ordered)-1].Name() != "debug" {
		t.Errorf("last service = %q, want debug", ordered[len(ordered)-1].Name())
	}
}

func TestMergeIncludesBaselineSeccompRules(t *testing.T) {
	r := service.NewRegistry()
	active := []service.Service{build(t, r, "common", map[string]interface{}{})}
	cfg, err := Merge(active)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(cfg.SeccompRules) == 0 {
		t.Fatal("expected baseline seccomp rules to be present")
	}
}

func TestMergeDetectsBindDestinationCollision(t *testing.T) {
	r := service.NewRegistry()
	// root_share followed by another service binding the same dst is
	// allowed (root_share runs first among non-common services): x11
	// also binds /tmp/.X11-unix.
	active := []service.Service{
		build(t, r, "root_share", map[string]interface{}{"paths": []string{"/tmp/.X11-unix"}}),
		build(t, r, "x11", map[string]interface{}{}),
	}
	if _, err := Merge(active); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	// Two non-root_share services claiming the same dst is rejected:
	// with WAYLAND_DISPLAY=pipewire-0, wayland and pipewire both bind
	// $XDG_RUNTIME_DIR/pipewire-0.
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("WAYLAND_DISPLAY", "pipewire-0")
	active = []service.Service{
		build(t, r, "pipewire", map[string]interface{}{}),
		build(t, r, "wayland", map[string]interface{}{}),
	}
	if _, err := Merge(active); err == nil {
		t.Fatal("expected a bind destination collision error")
	}
}

func TestCheckBindSourcesFlagsMissingNonTryBind(t *testing.T) {
	r := service.NewRegistry()
	active := []service.Service{
		build(t, r, "root_share", map[string]interface{}{"paths": []string{"/definitely/missing/path"}}),
	}
	cfg, err := Merge(active)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	err = CheckBindSources(cfg, func(string) bool { return false })
	if err == nil {
		t.Fatal("expected BindSourceMissing error")
	}
}

func TestCheckBindSourcesAllowsTryBind(t *testing.T) {
	r := service.NewRegistry()
	active := []service.Service{build(t, r, "x11", map[string]interface{}{})}
	cfg, err := Merge(active)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := CheckBindSources(cfg, func(string) bool { return false }); err != nil {
		t.Fatalf("CheckBindSources should allow Try binds to be missing, got %v", err)
	}
}
