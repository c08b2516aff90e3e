package io

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockName = ".bench.lock"

// FileLock is an exclusive lock on a results directory. It prevents two
// analysis processes from writing reports or plots into the same directory at
// the same time.
type FileLock struct {
	lockFile *flock.Flock
	path     string
}

// NewFileLock creates a lock for the given directory. The lock file lives
// inside the directory, which is created when the lock is acquired.
func NewFileLock(dir string) *FileLock {
	lockPath := filepath.Join(dir, lockName)
	return &FileLock{
		lockFile: flock.New(lockPath),
		path:     lockPath,
	}
}

// Lock acquires the lock without waiting. It fails if another process holds it.
func (fl *FileLock) Lock() error {
	dir := filepath.Dir(fl.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for lock file %s: %w", fl.path, err)
	}

	locked, err := fl.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire file lock at %s: %w", fl.path, err)
	}
	if !locked {
		return fmt.Errorf("cannot acquire exclusive lock on %s: another process is writing to %s", fl.path, dir)
	}
	return nil
}

// Unlock releases the lock. The lock file is left in place.
func (fl *FileLock) Unlock() error {
	if err := fl.lockFile.Unlock(); err != nil {
		return fmt.Errorf("failed to release file lock at %s: %w", fl.path, err)
	}
	return nil
}

// Path returns the path to the lock file.
func (fl *FileLock) Path() string {
	return fl.path
}

// WithLock runs f while holding the lock of dir.
func WithLock(dir string, f func() error) error {
	lock := NewFileLock(dir)
	if err := lock.Lock(); err != nil {
		return err
	}
	err := f()
	if unlockErr := lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}
