package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another sweep holds the lock.
var ErrLocked = errors.New("locked by another sweep")

// Lock is an advisory file lock held for the duration of a sweep or restore,
// so that two processes never rewrite the same resource at once.
type Lock struct {
	fl *flock.Flock
}

// LockPath returns the lock file used alongside a restore point. When no
// restore point is kept the lock sits next to the resource itself.
func LockPath(restorePointPath, storePath string) string {
	if restorePointPath != "" {
		return restorePointPath + ".lock"
	}
	return storePath + ".lock"
}

// AcquireLock takes the lock at path without blocking.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory for %s: %w", path, err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		_ = fl.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release gives the lock up. The lock file itself is left in place.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.fl.Path(), err)
	}
	return nil
}
