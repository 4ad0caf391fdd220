package provision

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// HostLock serializes provisioning runs on one host.
type HostLock struct {
	lock *flock.Flock
}

// NewHostLock returns a lock on path, or the default lock file when empty.
func NewHostLock(path string) *HostLock {
	if path == "" {
		path = DefaultPaths().LockFile
	}
	return &HostLock{lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *HostLock) Path() string {
	return l.lock.Path()
}

// Acquire takes the lock without waiting. ErrRunInProgress is returned when
// another process holds it.
func (l *HostLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%s: %w", l.lock.Path(), ErrRunInProgress)
	}
	return nil
}

// Release drops the lock.
func (l *HostLock) Release() error {
	return l.lock.Unlock()
}
