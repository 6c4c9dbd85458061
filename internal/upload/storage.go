// Package upload stores document blobs on local disk.
package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Storage writes uploaded documents under a base directory. Filenames are
// prefixed with a timestamp so re-submissions with the same name never
// collide.
type Storage struct {
	dir string
}

// NewStorage creates the base directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save writes the document and returns its storage path.
func (s *Storage) Save(name string, data []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	path := filepath.Join(s.dir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), base))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

// Remove deletes a stored document.
func (s *Storage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
