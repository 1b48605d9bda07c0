package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// systrayService allows registering a StatusNotifierItem/systray icon,
// grounded on spec.md §3's DBusRule model applied to the well-known
// watcher name, the same way other_examples/canonical-snapd's dbus.go
// grants a Talk rule for one fixed bus name; it also grants Talk to
// org.freedesktop.Notifications.
type systrayService struct {
	Base
}

func registerSystray(r *Registry) {
	r.register("systray", Schema{}, func(Options) (Service, error) {
		return &systrayService{Base: Base{name: "systray", pretty: "System tray", desc: "Access to the desktop's system tray"}}, nil
	})
}

func (systrayService) IterDBusRules() []bindop.DBusRule {
	return []bindop.DBusRule{
		{Bus: bindop.DBusSession, Kind: bindop.DBusTalk, Name: "org.kde.StatusNotifierWatcher"},
		{Bus: bindop.DBusSession, Kind: bindop.DBusTalk, Name: "org.freedesktop.Notifications"},
	}
}
