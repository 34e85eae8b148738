// Package fs stores blobs as files below a root directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"procureflow/internal/blob/core"
)

const defaultRoot = "./blobdata"

// Store writes each object to root/<key>. The etag is recomputed from the
// file contents on read, so no sidecar metadata is kept.
type Store struct {
	root string
}

// New returns a store rooted at root, creating the directory when missing.
func New(root string) (*Store, error) {
	if root == "" {
		root = defaultRoot
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root}, nil
}

// Driver reports core.DriverFilesystem.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// resolve maps key onto a file below root. Keys are slash separated and
// must stay relative.
func (s *Store) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(path.Clean(key))), nil
}

// Write stages data in a temporary file next to the target and renames it
// into place, so readers never observe a partial snapshot.
func (s *Store) Write(_ context.Context, key string, data []byte) (core.Object, error) {
	target, err := s.resolve(key)
	if err != nil {
		return core.Object{}, err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return core.Object{}, err
	}
	tmp, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return core.Object{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return core.Object{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return core.Object{}, err
	}
	if err := tmp.Close(); err != nil {
		return core.Object{}, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return core.Object{}, err
	}
	return s.describe(key, target, data)
}

// Read loads the whole file.
func (s *Store) Read(_ context.Context, key string) (core.Object, error) {
	target, err := s.resolve(key)
	if err != nil {
		return core.Object{}, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Object{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	if err != nil {
		return core.Object{}, err
	}
	return s.describe(key, target, data)
}

// Remove deletes the file.
func (s *Store) Remove(_ context.Context, key string) (bool, error) {
	target, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (s *Store) describe(key, target string, data []byte) (core.Object, error) {
	st, err := os.Stat(target)
	if err != nil {
		return core.Object{}, err
	}
	return core.Object{
		Key:     key,
		Data:    data,
		Size:    int64(len(data)),
		ETag:    core.ETag(data),
		ModTime: st.ModTime().UTC(),
	}, nil
}
