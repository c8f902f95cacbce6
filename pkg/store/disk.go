package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore stores rendered pages on the local filesystem, one directory
// per session under a temporary-pages root:
//
//	<root>/<sessionID>/page_<n>.png
//
// References are URL paths of the form /pages/<sessionID>/page_<n>.png,
// served by the HTTP surface. Writes go through a temp file and rename so
// concurrent re-renders of the same page settle last-writer-wins without
// a torn file.
type DiskStore struct {
	root string
}

// NewDiskStore creates a DiskStore rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	return &DiskStore{root: dir}, nil
}

// Root returns the temporary-pages root directory.
func (s *DiskStore) Root() string {
	return s.root
}

// Save writes the page bitmap, lazily creating the session directory.
func (s *DiskStore) Save(ctx context.Context, sessionID string, pageNum int, data []byte) (string, error) {
	if !safeName(sessionID) {
		return "", ErrInvalidName
	}

	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create session dir: %w", err)
	}

	filename := PageFilename(pageNum)
	path := filepath.Join(dir, filename)

	tmp, err := os.CreateTemp(dir, filename+".tmp*")
	if err != nil {
		return "", fmt.Errorf("store: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store: write page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store: replace page: %w", err)
	}

	return "/pages/" + sessionID + "/" + filename, nil
}

// Remove deletes the session's directory recursively.
func (s *DiskStore) Remove(ctx context.Context, sessionID string) error {
	if !safeName(sessionID) {
		return ErrInvalidName
	}
	return os.RemoveAll(filepath.Join(s.root, sessionID))
}

// Path resolves a session/filename pair to an on-disk path for serving.
// It rejects names that would escape the storage root and returns
// ErrNotFound when the file doesn't exist.
func (s *DiskStore) Path(sessionID, filename string) (string, error) {
	if !safeName(sessionID) || !safeName(filename) {
		return "", ErrInvalidName
	}
	path := filepath.Join(s.root, sessionID, filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return path, nil
}

// safeName reports whether name is a single non-empty path element.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
