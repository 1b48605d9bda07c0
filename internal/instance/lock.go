package instance

import (
	"os"

	"golang.org/x/sys/unix"
)

// Lock is an advisory exclusive lock on an instance directory,
// serializing `edit` against `run` startup per spec.md §4.4. Grounded
// on the teacher's direct golang.org/x/sys/unix syscall style
// (rlimit.go, process.go) rather than a third-party flock wrapper,
// since x/sys/unix.Flock is already the pack's chosen low-level
// syscall surface.
type Lock struct {
	f *os.File
}

// AcquireLock opens (creating if needed) dir/.lock and takes an
// exclusive, non-blocking flock on it. If another process holds it,
// the unwrapped flock error is returned; callers attach their own
// error kind.
func AcquireLock(dir string) (*Lock, error) {
	path := dir + "/.lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release drops the lock and closes the underlying file descriptor.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return closeErr
}
