// SPDX-License-Identifier: MIT

// Package storage persists raw uploaded files under a single root directory
// with collision-free generated names.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Repository stores raw file content on the local filesystem. Stored names are
// generated, so two uploads with the same suggested name never collide.
type Repository struct {
	root string
}

// NewRepository creates the root directory if absent and returns a repository
// rooted at it.
func NewRepository(root string) (*Repository, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload root %s: %w", root, err)
	}
	return &Repository{root: root}, nil
}

// Root returns the absolute storage root directory.
func (r *Repository) Root() string {
	return r.root
}

// Store writes the content of src into the repository and returns the stored
// filename (relative to the root). The suggested name contributes only its
// extension; the basename is a fresh UUID.
func (r *Repository) Store(src io.Reader, suggestedName string) (string, error) {
	name := uuid.New().String() + sanitizeExt(suggestedName)
	path := filepath.Join(r.root, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create stored file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write stored file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close stored file: %w", err)
	}

	return name, nil
}

// Resolve maps a stored filename back to an absolute path inside the root.
// It rejects names that would escape the root.
func (r *Repository) Resolve(storedName string) (string, error) {
	if storedName == "" {
		return "", fmt.Errorf("empty stored name")
	}
	if storedName != filepath.Base(storedName) {
		return "", fmt.Errorf("stored name %q is not a bare filename", storedName)
	}
	return filepath.Join(r.root, storedName), nil
}

// sanitizeExt extracts a safe file extension from a client-supplied name.
func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext == "" || ext == "." || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
