package dbusproxy

import (
	"testing"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

func TestFlagForTranslatesBitExact(t *testing.T) {
	cases := []struct {
		rule bindop.DBusRule
		want string
	}{
		{bindop.DBusRule{Kind: bindop.DBusTalk, Name: "org.freedesktop.Notifications"}, "--talk=org.freedesktop.Notifications"},
		{bindop.DBusRule{Kind: bindop.DBusOwn, Name: "org.mpris.MediaPlayer2.*"}, "--own=org.mpris.MediaPlayer2.*"},
		{bindop.DBusRule{Kind: bindop.DBusCall, Name: "org.freedesktop.Flatpak", Rule: "/org/freedesktop/*@*"}, "--call=org.freedesktop.Flatpak=/org/freedesktop/*@*"},
		{bindop.DBusRule{Kind: bindop.DBusBroadcast, Name: "org.freedesktop.Flatpak", Rule: "/org/freedesktop/*@*"}, "--broadcast=org.freedesktop.Flatpak=/org/freedesktop/*@*"},
		{bindop.DBusRule{Kind: bindop.DBusFilter}, "--filter"},
	}
	for _, c := range cases {
		if got := flagFor(c.rule); got != c.want {
			t.Errorf("flagFor(%+v) = %q, want %q", c.rule, got, c.want)
		}
	}
}

func TestSplitByBus(t *testing.T) {
	rules := []bindop.DBusRule{
		{Bus: bindop.DBusSession, Kind: bindop.DBusTalk, Name: "a"},
		{Bus: bindop.DBusSystem, Kind: bindop.DBusTalk, Name: "b"},
		{Bus: bindop.DBusSession, Kind: bindop.DBusOwn, Name: "c"},
	}
	session, system := splitByBus(rules)
	if len(session) != 2 || len(system) != 1 {
		t.Fatalf("got %d session, %d system rules, want 2, 1", len(session), len(system))
	}
	if system[0].Name != "b" {
		t.Errorf("system rule = %+v, want Name=b", system[0])
	}
}
