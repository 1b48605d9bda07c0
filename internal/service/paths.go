package service

import (
	"fmt"
	"os"
)

// SandboxHome is the HOME every instance sees inside the sandbox,
// independent of the invoking user's real home directory — grounded on
// the teacher's hugbox.homeDir constant ("/home/amnesia" in
// newHugbox()), generalized to a stable path not tied to one
// application's branding.
const SandboxHome = "/home/sandbox"

// SandboxRuntimeDir is the XDG runtime directory inside the sandbox.
// The uid is preserved across the sandbox boundary (no user namespace
// remapping), so the conventional /run/user/<uid> path keeps clients
// that derive socket paths from it working unmodified.
func SandboxRuntimeDir() string {
	return fmt.Sprintf("/run/user/%d", os.Getuid())
}
