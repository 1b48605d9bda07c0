package service

import "github.com/bubblejail/bubblejail/internal/bindop"

// gamemodeService grants D-Bus access to Feral's GameMode daemon so a
// sandboxed game can request the performance governor, same single
// well-known-name Talk rule shape as notifyService.
type gamemodeService struct {
	Base
}

func registerGamemode(r *Registry) {
	r.register("gamemode", Schema{}, func(Options) (Service, error) {
		return &gamemodeService{Base: Base{name: "gamemode", pretty: "GameMode", desc: "Access to the GameMode performance daemon"}}, nil
	})
}

func (gamemodeService) IterDBusRules() []bindop.DBusRule {
	return []bindop.DBusRule{
		{Bus: bindop.DBusSession, Kind: bindop.DBusTalk, Name: "com.feralinteractive.GameMode"},
	}
}
