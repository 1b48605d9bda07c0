package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// xdgDesktopPortalService grants Talk access to the portal
// aggregator and its Documents/FileChooser/OpenURI sub-interfaces,
// the last line of defense for file pickers and URL opening once a
// sandbox has no other filesystem access. Several Talk rules rather
// than one, same multi-rule shape as systrayService.
type xdgDesktopPortalService struct {
	Base
}

func registerXdgDesktopPortal(r *Registry) {
	r.register("xdg_desktop_portal", Schema{}, func(Options) (Service, error) {
		return &xdgDesktopPortalService{Base: Base{
			name:   "xdg_desktop_portal",
			pretty: "XDG Desktop Portal",
			desc:   "Access to the desktop portal (file chooser, URL opening, screenshots)",
		}}, nil
	})
}

func (xdgDesktopPortalService) IterDBusRules() []bindop.DBusRule {
	return []bindop.DBusRule{
		{Bus: bindop.DBusSession, Kind: bindop.DBusTalk, Name: "org.freedesktop.portal.Desktop"},
		{Bus: bindop.DBusSession, Kind: bindop.DBusTalk, Name: "org.freedesktop.portal.Documents"},
	}
}
