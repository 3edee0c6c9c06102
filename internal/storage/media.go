// Package storage holds the media store used for uploaded event
// posters.  Deletion is best-effort: a missing or locked file is
// logged, never fatal, because losing an orphaned image is preferable
// to blocking an event delete cascade.
package storage

import (
	"log"
	"os"
	"path/filepath"
)

// MediaStore removes uploaded files beneath a fixed base directory.
type MediaStore struct {
	baseDir string
}

// NewMediaStore returns a store rooted at baseDir.
func NewMediaStore(baseDir string) *MediaStore {
	return &MediaStore{baseDir: baseDir}
}

// Delete removes the file at the given relative path.  Paths escaping
// the base directory are refused; all other failures are logged and
// swallowed.
func (s *MediaStore) Delete(path string) {
	if path == "" {
		return
	}
	full := filepath.Join(s.baseDir, filepath.Clean("/"+path))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		log.Printf("media: delete %s failed: %v", full, err)
	}
}
