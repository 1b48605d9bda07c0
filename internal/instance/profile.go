package instance

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile is an immutable create-time template (spec.md §3): a
// sequence of service names with default option values, plus
// desktop-entry metadata and an optional executable-name hint. It
// shares the services.toml grammar with Instance (both are a
// map[string]map[string]interface{} keyed by service name), grounded
// on other_examples/javanhut-Poxy's single TOML-backed sandbox profile
// type reused for both "preset" and "live instance" duty.
type Profile struct {
	Name string

	// DesktopEntryName feeds generate-desktop-entry's Name= field.
	DesktopEntryName string
	// ImportTip is a free-form string shown to the user at create time,
	// e.g. pointing at data the new instance's home should be seeded
	// with.
	ImportTip string

	// Services is the table of activated services and their raw
	// (not yet schema-validated) option tables.
	Services map[string]map[string]interface{}
}

// decodeProfile parses a profile/instance services.toml file. The
// reserved `[bubblejail]` table carries profile metadata; every other
// top-level table is a service name, per spec.md §6's grammar.
func decodeProfile(name, path string) (*Profile, error) {
	raw := make(map[string]map[string]interface{})
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, err
	}
	_ = meta

	p := &Profile{Name: name, Services: make(map[string]map[string]interface{})}
	if bj, ok := raw["bubblejail"]; ok {
		if v, ok := bj["desktop_entry_name"].(string); ok {
			p.DesktopEntryName = v
		}
		if v, ok := bj["import_tip"].(string); ok {
			p.ImportTip = v
		}
		delete(raw, "bubblejail")
	}
	for svcName, table := range raw {
		p.Services[svcName] = table
	}
	return p, nil
}

// FindProfile searches the three profile locations in priority order
// — user, then system, then packaged — per spec.md §3 ("user
// overrides system overrides packaged"). Returns the first match.
func FindProfile(name string) (*Profile, error) {
	dirs, err := profileSearchDirs()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, name+".toml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return decodeProfile(name, path)
	}
	return nil, os.ErrNotExist
}

// ListProfiles returns every distinct profile name visible across all
// three search locations, user-priority duplicates collapsed.
func ListProfiles() ([]string, error) {
	dirs, err := profileSearchDirs()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), ".toml")] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// profileSearchDirs returns the three search roots in the priority
// order spec.md §3 defines: user first, packaged last.
func profileSearchDirs() ([]string, error) {
	user, err := userProfileDir()
	if err != nil {
		return nil, err
	}
	return []string{user, systemProfileDir, packagedProfileDir}, nil
}
