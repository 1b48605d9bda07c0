package service

import (
	"testing"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

func TestNewRegistryListsEveryBuiltin(t *testing.T) {
	r := NewRegistry()
	want := []string{
		"common", "x11", "wayland", "network", "pulse_audio", "home_share",
		"direct_rendering", "systray", "joystick", "root_share", "openjdk",
		"notify", "ibus", "fcitx", "slirp4netns", "pasta_network",
		"namespaces_limits", "v4l", "pipewire", "gamemode", "mpris",
		"xdg_desktop_portal", "debug",
	}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("List() returned %d services, want %d: %v", len(got), len(want), got)
	}
	index := make(map[string]bool, len(got))
	for _, name := range got {
		index[name] = true
	}
	for _, name := range want {
		if !index[name] {
			t.Errorf("missing built-in service %q", name)
		}
	}
}

func TestValidateRejectsUnknownOption(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Validate("home_share", map[string]interface{}{"bogus_key": true})
	if err == nil {
		t.Fatal("expected error for unknown option, got nil")
	}
}

func TestValidateUnknownService(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Validate("not_a_real_service", nil)
	if err == nil {
		t.Fatal("expected error for unknown service, got nil")
	}
}

func TestBuildAppliesDefaults(t *testing.T) {
	r := NewRegistry()
	svc, warnings, err := r.Build("root_share", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings for a non-deprecated service, got %v", warnings)
	}
	if svc.Name() != "root_share" {
		t.Fatalf("got name %q, want root_share", svc.Name())
	}
	rs, ok := svc.(*rootShareService)
	if !ok || len(rs.paths) != 0 || !rs.readOnlyOnly {
		t.Fatalf("defaults not applied: %+v", svc)
	}
}

func TestBuildWarnsOnDeprecatedOption(t *testing.T) {
	r := NewRegistry()
	_, warnings, err := r.Build("common", map[string]interface{}{"share_local_time": true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a deprecation warning for share_local_time, got none")
	}
}

func TestBuildWarnsOnExperimentalService(t *testing.T) {
	r := NewRegistry()
	_, warnings, err := r.Build("debug", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	found := false
	for _, w := range warnings {
		if w.Service == "debug" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an experimental-service warning for debug")
	}
}

func TestNamespacesLimitsAcceptsDocumentedKeys(t *testing.T) {
	r := NewRegistry()
	svc, _, err := r.Build("namespaces_limits", map[string]interface{}{
		"user":  int64(0),
		"mount": int64(0),
		"net":   int64(-1),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	limits := svc.IterNamespaceLimits()
	if got := limits[bindop.NSUser]; got != 0 {
		t.Errorf("user limit = %d, want 0", got)
	}
	if got := limits[bindop.NSMount]; got != 0 {
		t.Errorf("mount limit = %d, want 0", got)
	}
	if got := limits[bindop.NSNet]; got != -1 {
		t.Errorf("net limit = %d, want -1", got)
	}
}

func TestNamespacesLimitsRejectsOutOfRange(t *testing.T) {
	r := NewRegistry()
	if _, _, err := r.Build("namespaces_limits", map[string]interface{}{"user": int64(-2)}); err == nil {
		t.Fatal("expected out-of-range error for user=-2")
	}
}

func TestConflictCheckSymmetric(t *testing.T) {
	r := NewRegistry()
	net, _, err := r.Build("network", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Build(network): %v", err)
	}
	slirp, _, err := r.Build("slirp4netns", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Build(slirp4netns): %v", err)
	}

	pair, conflict := ConflictCheck([]Service{net, slirp})
	if !conflict {
		t.Fatal("expected network+slirp4netns to conflict")
	}
	if pair.A != "network" || pair.B != "slirp4netns" {
		t.Fatalf("got pair %+v, want {network slirp4netns}", pair)
	}
}

func TestConflictCheckNoFalsePositive(t *testing.T) {
	r := NewRegistry()
	x11, _, err := r.Build("x11", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Build(x11): %v", err)
	}
	wayland, _, err := r.Build("wayland", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Build(wayland): %v", err)
	}
	if _, conflict := ConflictCheck([]Service{x11, wayland}); conflict {
		t.Fatal("x11 and wayland should not conflict")
	}
}

func TestIBusFcitxConflict(t *testing.T) {
	r := NewRegistry()
	ibus, _, err := r.Build("ibus", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Build(ibus): %v", err)
	}
	fcitx, _, err := r.Build("fcitx", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Build(fcitx): %v", err)
	}
	if _, conflict := ConflictCheck([]Service{ibus, fcitx}); !conflict {
		t.Fatal("expected ibus and fcitx to conflict")
	}
}
