package instance

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"tor-browser": true,
		"work_1":      true,
		"v2.0":        true,
		"":            false,
		".":           false,
		"..":          false,
		"../escape":   false,
		"has space":   false,
		"slash/here":  false,
	}
	for name, want := range cases {
		if got := validName(name); got != want {
			t.Errorf("validName(%q) = %v, want %v", name, got, want)
		}
	}
}

func setTestDirs(t *testing.T) {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(base, "run"))
}

func TestCreateOpenRoundTrip(t *testing.T) {
	setTestDirs(t)

	inst, err := Create("t1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	inst.Services = map[string]map[string]interface{}{
		"common": {
			"executable_name":  []interface{}{"/bin/true"},
			"filter_disk_sync": true,
		},
		"home_share": {
			"home_paths": []interface{}{"Downloads", "Music"},
		},
	}
	if err := inst.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open("t1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reflect.DeepEqual(reopened.Services, inst.Services) {
		t.Errorf("round trip changed services:\nsaved:    %#v\nreloaded: %#v", inst.Services, reopened.Services)
	}

	if _, err := os.Stat(inst.HomeDir()); err != nil {
		t.Errorf("instance home dir missing: %v", err)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	setTestDirs(t)
	if _, err := Create("dup", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := Create("dup", nil); err == nil {
		t.Fatal("expected error creating an instance that already exists")
	}
}

func TestCreateCopiesProfileServices(t *testing.T) {
	setTestDirs(t)
	profile := &Profile{
		Name: "browser",
		Services: map[string]map[string]interface{}{
			"x11":    {},
			"common": {"executable_name": []interface{}{"firefox"}},
		},
	}
	inst, err := Create("fromprofile", profile)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := inst.Services["x11"]; !ok {
		t.Error("profile service x11 not copied into instance")
	}

	// Mutating the instance copy must not reach back into the profile.
	inst.Services["common"]["executable_name"] = []interface{}{"chromium"}
	if got := profile.Services["common"]["executable_name"].([]interface{})[0]; got != "firefox" {
		t.Errorf("profile mutated through instance copy: %v", got)
	}
}

func TestFindProfileInUserDir(t *testing.T) {
	setTestDirs(t)
	userDir, err := userProfileDir()
	if err != nil {
		t.Fatalf("userProfileDir: %v", err)
	}
	contents := "[common]\nexecutable_name = [\"/bin/user-wins\"]\n"
	if err := os.WriteFile(filepath.Join(userDir, "p1.toml"), []byte(contents), 0600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	p, err := FindProfile("p1")
	if err != nil {
		t.Fatalf("FindProfile: %v", err)
	}
	got := p.Services["common"]["executable_name"].([]interface{})[0]
	if got != "/bin/user-wins" {
		t.Errorf("got executable %v, want /bin/user-wins", got)
	}
}

func TestLockExcludesSecondAcquirer(t *testing.T) {
	dir := t.TempDir()
	l1, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer l1.Release()

	// flock exclusivity is per open file description, so a second open
	// in this same process still observes the held lock.
	if _, err := AcquireLock(dir); err == nil {
		t.Fatal("expected second AcquireLock to fail while lock is held")
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	l2, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	l2.Release()
}
