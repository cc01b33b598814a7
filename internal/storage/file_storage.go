// Package storage provides directory-scoped file existence and size checks.
// The download engine uses it for the per-file skip-if-exists check (step 1
// of the download protocol); atomic placement itself goes through
// internal/fsatomic, not through this package, so FileStorage carries no
// write path of its own.
package storage

import (
	"os"
	"path/filepath"
)

// FileStorage answers existence/size questions about files in one
// directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new FileStorage instance with the given directory.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// FileExists checks whether a file exists in the storage directory.
func (s *FileStorage) FileExists(filename string) bool {
	_, err := os.Stat(filepath.Join(s.dir, filename))
	return err == nil
}

// GetFileSize returns the size of the file in bytes.
func (s *FileStorage) GetFileSize(filename string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.dir, filename))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
