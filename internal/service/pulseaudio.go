package service

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bubblejail/bubblejail/internal/bindop"
)

// pulseAudioService grants access to the host PulseAudio (or
// pulse-compatible PipeWire) socket, adapted directly from the teacher's
// hugbox.enablePulseAudio (pulse.go): locate the socket via PULSE_SERVER
// or the XDG runtime dir default, bind it, copy the auth cookie in as a
// file write when one is readable, and emit
// a client.conf that disables shared memory (SHM across the sandbox
// boundary is unsafe).
type pulseAudioService struct {
	Base
}

func registerPulseAudio(r *Registry) {
	r.register("pulse_audio", Schema{}, func(Options) (Service, error) {
		return &pulseAudioService{Base: Base{name: "pulse_audio", pretty: "PulseAudio", desc: "Access to the host audio server"}}, nil
	})
}

func (pulseAudioService) IterBindOps() []bindop.BindOp {
	const unixPrefix = "unix:"

	sockPath := os.Getenv("PULSE_SERVER")
	switch {
	case sockPath == "":
		runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
		if runtimeDir == "" {
			return nil
		}
		sockPath = filepath.Join(runtimeDir, "pulse", "native")
	case strings.HasPrefix(sockPath, unixPrefix):
		sockPath = strings.TrimPrefix(sockPath, unixPrefix)
	default:
		// Non-local PulseAudio is not proxied into the sandbox.
		return nil
	}

	sandboxRuntimeDir := SandboxRuntimeDir()
	sandboxSock := filepath.Join(sandboxRuntimeDir, "pulse", "native")
	sandboxConf := filepath.Join(sandboxRuntimeDir, "pulse", "client.conf")

	ops := []bindop.BindOp{
		bindop.Bind{Src: sockPath, DstPath: sandboxSock, Try: true},
		bindop.EnvSet{Key: "PULSE_SERVER", Value: "unix:" + sandboxSock},
		bindop.EnvSet{Key: "PULSE_CLIENTCONFIG", Value: sandboxConf},
		bindop.FileWrite{DstPath: sandboxConf, Bytes: []byte("enable-shm=no\n")},
	}

	cookiePath := os.Getenv("PULSE_COOKIE")
	if cookiePath == "" {
		if home := os.Getenv("HOME"); home != "" {
			cookiePath = filepath.Join(home, ".config", "pulse", "cookie")
		}
	}
	if cookiePath != "" {
		if cookie, err := os.ReadFile(cookiePath); err == nil {
			sandboxCookie := filepath.Join(sandboxRuntimeDir, "pulse", "cookie")
			ops = append(ops,
				bindop.FileWrite{DstPath: sandboxCookie, Bytes: cookie},
				bindop.EnvSet{Key: "PULSE_COOKIE", Value: sandboxCookie},
			)
		}
	}

	return ops
}
