// Implements the file-backed slot store.

package slot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// slotExt is appended to slot names to form file names.
const slotExt = ".json"

// DirStore stores each slot as one file under a root directory.
//
// Writes go through a temp file and a rename so a concurrent reader never
// observes a partially written slot.
type DirStore struct {
	root string
}

// NewDirStore creates the root directory if needed and returns a store over it.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create slot directory %s: %w", root, err)
	}
	return &DirStore{root: root}, nil
}

// Root returns the directory backing the store.
func (s *DirStore) Root() string {
	return s.root
}

// Get implements Store.
func (s *DirStore) Get(name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by s.path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read slot %s: %w", name, err)
	}
	return data, nil
}

// Set implements Store.
func (s *DirStore) Set(name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(s.root, name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for slot %s: %w", name, err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write slot %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close slot %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace slot %s: %w", name, err)
	}
	return nil
}

// Delete implements Store.
func (s *DirStore) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete slot %s: %w", name, err)
	}
	return nil
}

// Names implements Store.
func (s *DirStore) Names() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read slot directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		n := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(n, slotExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, slotExt))
	}
	return names, nil
}

// path maps a slot name to its file path, rejecting names that would
// escape the root directory.
func (s *DirStore) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, name+slotExt), nil
}

// ValidateName checks that a slot name is non-empty and stays inside the
// store's namespace.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("slot name is empty")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid slot name %q", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid slot name %q", name)
	}
	return nil
}
