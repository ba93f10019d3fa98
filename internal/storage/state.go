// Package storage persists gatectl blackboard state between runs.
//
// A state file is a JSON document written atomically. While a StateFile is
// open it holds an exclusive lock on a sibling ".lock" file, so two runs
// cannot share one state file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CurrentSchemaVersion is written to every saved state.
const CurrentSchemaVersion = "1"

// ErrWouldBlock is returned by Open when another process holds the lock.
var ErrWouldBlock = errors.New("storage: state file is locked by another process")

// State is the persisted document.
type State struct {
	Version   string    `json:"version"`
	RunID     string    `json:"run_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	// Values is the blackboard snapshot. Numbers come back as float64.
	Values map[string]any `json:"values"`
}

// StateFile is an open, locked state file.
type StateFile struct {
	path string
	lock *os.File
}

// Open locks the state file at path. The file itself need not exist.
func Open(path string) (*StateFile, error) {
	if path == "" {
		return nil, errors.New("storage: empty state file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lock, err := acquireFileLock(path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return &StateFile{path: path, lock: lock}, nil
}

// Path returns the state file path.
func (f *StateFile) Path() string { return f.path }

// Load reads the state. It returns (nil, nil) if the file does not exist.
func (f *StateFile) Load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if s.Version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported state version %q in %s", s.Version, f.path)
	}
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	return &s, nil
}

// Save stamps s with the current schema version and time, and writes it.
func (f *StateFile) Save(s *State) error {
	s.Version = CurrentSchemaVersion
	s.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := AtomicWriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Close releases the lock. It is safe to call more than once.
func (f *StateFile) Close() error {
	lock := f.lock
	f.lock = nil
	return releaseFileLock(lock)
}
