package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps blobs as plain files directly under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at root. The directory is created on
// first write.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the directory holding the blobs.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.Base(name))
}

// Put copies r into a temporary file next to the target and renames it into place.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.root, err)
	}

	tmp, err := os.CreateTemp(s.root, ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", s.root, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

// PutFile renames path into place. When the rename fails, for example across
// filesystems, the file is copied instead and left where it was.
func (s *LocalStore) PutFile(ctx context.Context, name, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.root, err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(path, s.path(name)); err == nil {
		return nil
	}

	f, err := os.Open(path) // #nosec G304 -- path is a staging file created by the library
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return s.Put(ctx, name, f, -1)
}

// Open opens the blob file for reading.
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name)) // #nosec G304 -- names are content hashes generated by the library
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Exists reports whether the blob file is present.
func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Locate returns the absolute filesystem path of name when it can be determined.
func (s *LocalStore) Locate(name string) string {
	p := s.path(name)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
