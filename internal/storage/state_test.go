package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	t.Parallel()

	t.Run("successful write", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "test.txt")
		require.NoError(t, AtomicWriteFile(path, []byte("hello world"), 0o600))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "hello world", string(data))
		if runtime.GOOS != "windows" {
			fi, err := os.Stat(path)
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
		}
	})

	t.Run("overwrite leaves no temp files", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "test.txt")
		require.NoError(t, AtomicWriteFile(path, []byte("one"), 0o644))
		require.NoError(t, AtomicWriteFile(path, []byte("two"), 0o644))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "two", string(data))
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("directory creation failure", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))
		require.Error(t, AtomicWriteFile(filepath.Join(blocker, "child", "test.txt"), []byte("x"), 0o644))
	})
}

func TestStateFile_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state", "gatectl.json")

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, path, f.Path())

	s, err := f.Load()
	require.NoError(t, err)
	require.Nil(t, s)

	require.NoError(t, f.Save(&State{RunID: "abc", Values: map[string]any{"successes": 3, "mode": "patrol"}}))

	s, err = f.Load()
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, s.Version)
	require.Equal(t, "abc", s.RunID)
	require.False(t, s.UpdatedAt.IsZero())
	require.Equal(t, map[string]any{"successes": 3.0, "mode": "patrol"}, s.Values)
}

func TestStateFile_Lock(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "gatectl.json")

	f, err := Open(path)
	require.NoError(t, err)

	_, err = Open(path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrWouldBlock), "%v", err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	require.NoFileExists(t, path+".lock")

	g, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, g.Close())
}

func TestStateFile_LoadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := Open("")
	require.Error(t, err)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Load()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"version":"99","values":{}}`), 0o644))
	_, err = f.Load()
	require.ErrorContains(t, err, "unsupported state version")
}
