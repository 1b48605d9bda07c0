package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// mprisService lets the sandboxed process own an MPRIS media-player
// D-Bus name so desktop shells can show transport controls, grounded
// on the same DBusOwn shape commonService uses for its dbus_name
// option, here fixed to the MPRIS namespace prefix rather than an
// arbitrary user-supplied list.
type mprisService struct {
	Base
}

func registerMpris(r *Registry) {
	r.register("mpris", Schema{}, func(Options) (Service, error) {
		return &mprisService{Base: Base{name: "mpris", pretty: "MPRIS", desc: "Expose media player controls to the desktop"}}, nil
	})
}

func (mprisService) IterDBusRules() []bindop.DBusRule {
	return []bindop.DBusRule{
		{Bus: bindop.DBusSession, Kind: bindop.DBusOwn, Name: "org.mpris.MediaPlayer2.*"},
	}
}
