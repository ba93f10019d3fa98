//go:build windows

package storage

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// acquireFileLock takes an exclusive, non-blocking LockFileEx lock on the
// first byte of path, creating the file if needed.
var acquireFileLock = func(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	var overlapped windows.Overlapped
	err = windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, &overlapped)
	if err != nil {
		_ = f.Close()
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return nil, ErrWouldBlock
		}
		return nil, fmt.Errorf("LockFileEx failed: %w", err)
	}
	return f, nil
}

// releaseFileLock unlocks, closes and removes the lock file.
func releaseFileLock(f *os.File) error {
	if f == nil {
		return nil
	}
	var overlapped windows.Overlapped
	errUnlock := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, &overlapped)
	errClose := f.Close()
	errRemove := os.Remove(f.Name())
	if os.IsNotExist(errRemove) {
		errRemove = nil
	}
	return errors.Join(errUnlock, errClose, errRemove)
}
