package instance

import (
	"os"
	"path/filepath"

	xdg "github.com/cep21/xdgbasedir"
)

const appDir = "bubblejail"

// packagedProfileDir is searched last (lowest priority) and is owned
// by the package manager: FindProfile looks in the user directory,
// then systemProfileDir, then here.
const packagedProfileDir = "/usr/share/bubblejail/profiles"

// systemProfileDir lets a distro/site admin drop profiles that
// override the packaged ones without touching /usr/share.
const systemProfileDir = "/etc/bubblejail/profiles"

// configDir returns $XDG_CONFIG_HOME/bubblejail, creating it if
// missing, grounded on the teacher's config.New() which does the same
// xdg.ConfigHomeDirectory()+MkdirAll dance for its own config path.
func configDir() (string, error) {
	d, err := xdg.ConfigHomeDirectory()
	if err != nil {
		return "", err
	}
	d = filepath.Join(d, appDir)
	if err := os.MkdirAll(d, 0700); err != nil {
		return "", err
	}
	return d, nil
}

// dataDir returns $XDG_DATA_HOME/bubblejail, creating it if missing.
func dataDir() (string, error) {
	d, err := xdg.DataHomeDirectory()
	if err != nil {
		return "", err
	}
	d = filepath.Join(d, appDir)
	if err := os.MkdirAll(d, 0700); err != nil {
		return "", err
	}
	return d, nil
}

// InstancesDir is $XDG_DATA_HOME/bubblejail/instances, one subdirectory
// per instance holding its services.toml and homedir.
func InstancesDir() (string, error) {
	base, err := dataDir()
	if err != nil {
		return "", err
	}
	d := filepath.Join(base, "instances")
	if err := os.MkdirAll(d, 0700); err != nil {
		return "", err
	}
	return d, nil
}

// userProfileDir is $XDG_CONFIG_HOME/bubblejail/profiles, the
// highest-priority profile search location.
func userProfileDir() (string, error) {
	base, err := configDir()
	if err != nil {
		return "", err
	}
	d := filepath.Join(base, "profiles")
	if err := os.MkdirAll(d, 0700); err != nil {
		return "", err
	}
	return d, nil
}

// RuntimeDir returns $XDG_RUNTIME_DIR/bubblejail/<instanceName>, used
// for the instance's D-Bus proxy sockets and helper control socket
// (spec.md §6's helper.sock path).
func RuntimeDir(instanceName string) (string, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		d, err := xdg.DataHomeDirectory()
		if err != nil {
			return "", err
		}
		base = filepath.Join(d, ".run")
	}
	d := filepath.Join(base, appDir, instanceName)
	if err := os.MkdirAll(d, 0700); err != nil {
		return "", err
	}
	return d, nil
}
