// Package blob stores uploaded file bytes on local disk.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes uploads beneath a single base directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes r to a file named after the client-supplied filename and
// returns the stored path. The name is reduced to its base component so a
// crafted filename cannot escape the upload directory.
func (s *LocalStore) Save(filename string, r io.Reader) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("blob: invalid file name %q", filename)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("blob: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("blob: write %s: %w", path, err)
	}
	return path, nil
}
