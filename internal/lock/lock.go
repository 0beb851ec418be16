// Package lock provides the per-instance advisory file lock that keeps two
// gcgit processes from mutating the same instance directory concurrently.
package lock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileName is the lock file created inside the instance directory.
const FileName = ".gcgit.lock"

// Lock holds an acquired instance lock until released.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the advisory lock for the instance directory without
// blocking. A held lock means another gcgit process is operating on the
// instance; the caller should surface that, not wait.
func Acquire(instanceDir string) (*Lock, error) {
	fl := flock.New(filepath.Join(instanceDir, FileName))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("instance %s is locked by another gcgit process", filepath.Base(instanceDir))
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to defer; errors are reported so callers can
// log them on exit paths.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release instance lock: %w", err)
	}
	return nil
}
