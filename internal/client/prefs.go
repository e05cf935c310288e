package client

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// FilePreferences stores the selected tenant id in a single file
type FilePreferences struct {
	path string
}

// NewFilePreferences creates a preference store backed by path
func NewFilePreferences(path string) *FilePreferences {
	return &FilePreferences{path: path}
}

// Load returns the saved tenant id, or "" when none is saved
func (p *FilePreferences) Load() (string, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save persists tenantID
func (p *FilePreferences) Save(tenantID string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(tenantID+"\n"), 0o600)
}

// Clear removes the saved tenant
func (p *FilePreferences) Clear() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
