package cliutil

import "os/exec"

// Notify posts a desktop notification via notify-send, grounded on the
// teacher's internal/ui/notify package (same purpose, implemented there
// via a dlopen'd libnotify instead of the external binary spec.md §6
// specifies). Never errors the caller: per spec.md §7 a missing
// notify-send must not escalate into a second failure.
func Notify(summary, body string) {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return
	}
	_ = exec.Command(path, summary, body).Run()
}
