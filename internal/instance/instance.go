package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/bubblejail/bubblejail/internal/bjerror"
)

const servicesFileName = "services.toml"

// nameRe-like validation kept manual (no regexp import needed) since
// the rule is a single simple character class, grounded on the
// teacher's utils.IsValidFilename-style ad-hoc check rather than a
// third-party validator for a one-line rule.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return name != "." && name != ".."
}

// Instance is a named on-disk object (spec.md §3): a home directory
// plus an authoritative services.toml. Created by create, mutated by
// edit, never auto-destroyed.
type Instance struct {
	Name string
	Dir  string

	// Services mirrors Profile.Services: raw per-service option tables
	// keyed by service name, not yet schema-validated.
	Services map[string]map[string]interface{}
}

// HomeDir is the sandbox's HOME, $instanceDir/home.
func (i *Instance) HomeDir() string { return filepath.Join(i.Dir, "home") }

// RuntimeDir is $XDG_RUNTIME_DIR/bubblejail/<name>, where the helper
// control socket and the D-Bus proxy sockets live while the instance
// is running (spec.md §6).
func (i *Instance) RuntimeDir() (string, error) { return RuntimeDir(i.Name) }

// HelperSocketPath is $XDG_RUNTIME_DIR/bubblejail/<name>/helper.sock,
// the path the re-entry path (spec.md §4.5) dials to detect and reuse
// an already-Running instance.
func (i *Instance) HelperSocketPath() (string, error) {
	dir, err := i.RuntimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "helper.sock"), nil
}

// servicesPath is $instanceDir/services.toml.
func (i *Instance) servicesPath() string { return filepath.Join(i.Dir, servicesFileName) }

// Open loads an existing instance's services.toml from the instance
// store. Returns a *bjerror.Error(KindConfigParse) on invalid TOML.
func Open(name string) (*Instance, error) {
	if !validName(name) {
		return nil, bjerror.New(bjerror.KindConfigParse, fmt.Sprintf("invalid instance name %q", name))
	}
	root, err := InstancesDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, name)
	inst := &Instance{Name: name, Dir: dir, Services: make(map[string]map[string]interface{})}

	raw := make(map[string]map[string]interface{})
	if _, err := toml.DecodeFile(inst.servicesPath(), &raw); err != nil {
		if os.IsNotExist(err) {
			return nil, bjerror.Wrap(bjerror.KindConfigParse, fmt.Sprintf("no such instance %q", name), err)
		}
		return nil, bjerror.Wrap(bjerror.KindConfigParse, fmt.Sprintf("services.toml for %q", name), err)
	}
	inst.Services = raw
	return inst, nil
}

// Create materializes a new instance directory seeded from a profile
// (or empty, if profile is nil), failing if the instance already
// exists. Per spec.md §3, profiles are inputs to create and are never
// mutated in place; the profile's tables are copied verbatim into the
// new instance's services.toml.
func Create(name string, profile *Profile) (*Instance, error) {
	if !validName(name) {
		return nil, bjerror.New(bjerror.KindConfigParse, fmt.Sprintf("invalid instance name %q", name))
	}
	root, err := InstancesDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, bjerror.New(bjerror.KindConfigParse, fmt.Sprintf("instance %q already exists", name))
	}

	if err := os.MkdirAll(filepath.Join(dir, "home"), 0700); err != nil {
		return nil, err
	}

	inst := &Instance{Name: name, Dir: dir, Services: make(map[string]map[string]interface{})}
	if profile != nil {
		for svc, table := range profile.Services {
			copied := make(map[string]interface{}, len(table))
			for k, v := range table {
				copied[k] = v
			}
			inst.Services[svc] = copied
		}
	}
	if err := inst.Save(); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return inst, nil
}

// Save writes the instance's services table back to services.toml.
// Callers mutating Services concurrently with a running instance must
// hold the instance's Lock first (spec.md §4.4).
func (i *Instance) Save() error {
	f, err := os.OpenFile(i.servicesPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(i.Services)
}

// Lock acquires the instance directory's advisory lock.
func (i *Instance) Lock() (*Lock, error) {
	return AcquireLock(i.Dir)
}

// List returns every instance name present in the instance store, in
// sorted order.
func List() ([]string, error) {
	root, err := InstancesDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
