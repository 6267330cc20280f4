// Package blob stores document content under content-addressed names.
package blob

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
// It maps to os.ErrNotExist so callers can use either with errors.Is.
var ErrNotFound = os.ErrNotExist

// Store holds immutable document files keyed by name ("<hex>.<ext>").
type Store interface {
	// Put writes the content read from r under name. Implementations must not
	// leave a partial blob behind when the write fails.
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	// PutFile stores the local file at path under name. The file may be moved
	// into place, so the caller must not rely on it afterwards.
	PutFile(ctx context.Context, name, path string) error
	// Open returns a reader for an existing blob.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Exists reports whether name is stored.
	Exists(ctx context.Context, name string) (bool, error)
	// Locate returns where name lives: a filesystem path or an object URL.
	Locate(name string) string
}
