package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// notifyService grants access to the desktop notification daemon,
// grounded on the teacher's internal/ui/notify package (same D-Bus
// destination, org.freedesktop.Notifications, reached here via a
// proxied D-Bus rule instead of a direct libnotify dlopen since the
// sandboxed process is not the launcher itself).
type notifyService struct {
	Base
}

func registerNotify(r *Registry) {
	r.register("notify", Schema{}, func(Options) (Service, error) {
		return &notifyService{Base: Base{name: "notify", pretty: "Notifications", desc: "Access to desktop notifications"}}, nil
	})
}

func (notifyService) IterDBusRules() []bindop.DBusRule {
	return []bindop.DBusRule{
		{Bus: bindop.DBusSession, Kind: bindop.DBusTalk, Name: "org.freedesktop.Notifications"},
	}
}
