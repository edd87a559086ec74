package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StyleStorage reads and writes the custom stylesheet injected into board pages.
type StyleStorage struct {
	mu   sync.RWMutex
	path string
}

// NewStyleStorage creates a storage for the stylesheet at path. The file need not exist.
func NewStyleStorage(path string) (*StyleStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure style directory: %w", err)
	}
	return &StyleStorage{path: path}, nil
}

// Path returns the stylesheet location.
func (s *StyleStorage) Path() string {
	return s.path
}

// Load returns the stylesheet, or "" when none has been written yet.
func (s *StyleStorage) Load() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read stylesheet: %w", err)
	}
	return string(data), nil
}

// Save replaces the stylesheet.
func (s *StyleStorage) Save(css string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeAtomic(s.path, []byte(css))
}

func writeAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
