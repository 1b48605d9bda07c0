package service

// registerBuiltins wires every built-in service from spec.md §4.1 into
// the registry, one registration function per service file — the same
// one-file-per-capability layout other_examples/canonical-snapd uses
// for its interfaces/builtin package.
func registerBuiltins(r *Registry) {
	registerCommon(r)
	registerX11(r)
	registerWayland(r)
	registerNetwork(r)
	registerPulseAudio(r)
	registerHomeShare(r)
	registerDirectRendering(r)
	registerSystray(r)
	registerJoystick(r)
	registerRootShare(r)
	registerOpenJDK(r)
	registerNotify(r)
	registerIBus(r)
	registerFcitx(r)
	registerSlirp4netns(r)
	registerPastaNetwork(r)
	registerNamespacesLimits(r)
	registerV4L(r)
	registerPipewire(r)
	registerGamemode(r)
	registerMpris(r)
	registerXdgDesktopPortal(r)
	registerDebug(r)
}
