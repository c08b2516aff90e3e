package io

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// FileExists reports whether a file or directory exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TerminateOnFullDisk panics if err is caused by a full disk. Any other error,
// including nil, is returned unchanged.
func TerminateOnFullDisk(err error) error {
	if err != nil && errors.Is(err, syscall.ENOSPC) {
		panic(fmt.Sprintf("disk full, terminating: %v", err))
	}
	return err
}

// WriteFileAtomic writes a file through write into a temporary file in the same
// directory and renames it over path once complete. Readers never observe a
// partially written file.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return TerminateOnFullDisk(fmt.Errorf("could not create temporary file for %s: %w", path, err))
	}
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmp.Name())
	}()

	err = write(tmp)
	if err != nil {
		_ = tmp.Close()
		return TerminateOnFullDisk(fmt.Errorf("could not write %s: %w", path, err))
	}
	err = tmp.Sync()
	if err != nil {
		_ = tmp.Close()
		return TerminateOnFullDisk(fmt.Errorf("could not sync %s: %w", path, err))
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("could not close %s: %w", path, err)
	}
	err = os.Chmod(tmp.Name(), 0644)
	if err != nil {
		return fmt.Errorf("could not set permissions of %s: %w", path, err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("could not move %s into place: %w", path, err)
	}
	return nil
}
