package helper

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Message{Type: TypeRun, ID: 7, Argv: []string{"/bin/true"}, Wait: true}
	if err := WriteFrame(&buf, want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Type != want.Type || got.ID != want.ID || got.Wait != want.Wait || len(got.Argv) != 1 || got.Argv[0] != want.Argv[0] {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReadFrameEOFOnEmptyStream(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestMergeEnvAppendsOverlay(t *testing.T) {
	base := []string{"PATH=/usr/bin"}
	out := mergeEnv(base, map[string]string{"FOO": "bar"})
	if len(out) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(out), out)
	}
	found := false
	for _, kv := range out {
		if kv == "FOO=bar" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected FOO=bar in %v", out)
	}
}

func TestMergeEnvNoOverlayReturnsBase(t *testing.T) {
	base := []string{"PATH=/usr/bin"}
	out := mergeEnv(base, nil)
	if len(out) != 1 || out[0] != base[0] {
		t.Errorf("got %v, want unchanged %v", out, base)
	}
}
