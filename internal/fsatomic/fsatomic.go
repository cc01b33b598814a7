// Package fsatomic provides the temp-file-then-rename primitive and the
// free-space check used by the Parquet writer (and, through it, by the CVM
// ZIP extractor), so partial files never become visible under a final
// name. The download engine follows the same ".tmp" then rename convention
// inline and does not import this package.
package fsatomic

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempPath returns the conventional temp name for a final path.
func TempPath(final string) string {
	return final + ".tmp"
}

// WriteFile writes data to path's temp sibling, fsyncs, then renames it
// into place. On any error the temp file is removed.
func WriteFile(path string, data []byte, perm os.FileMode) (err error) {
	tmp := TempPath(path)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("open temp file %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("fsync temp file %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp file %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// CreateTemp opens path's temp sibling for writing, creating parent
// directories as needed. The caller is responsible for closing the file
// and calling Commit or Discard.
func CreateTemp(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	tmp := TempPath(path)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp file %s: %w", tmp, err)
	}
	return f, nil
}

// Commit fsyncs, closes and renames the temp file opened by CreateTemp into
// its final name.
func Commit(f *os.File, finalPath string) error {
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("fsync %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("close %s: %w", f.Name(), err)
	}
	if err := os.Rename(f.Name(), finalPath); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("rename %s to %s: %w", f.Name(), finalPath, err)
	}
	return nil
}

// Discard closes and removes a temp file opened by CreateTemp, ignoring
// per-delete errors beyond logging-worthy detection by the caller.
func Discard(f *os.File) error {
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HasFreeSpace reports whether the filesystem containing dir has at least
// requiredBytes available. Used by the Parquet writer's pre-write check.
func HasFreeSpace(dir string, requiredBytes int64) (bool, error) {
	return hasFreeSpace(dir, requiredBytes)
}
