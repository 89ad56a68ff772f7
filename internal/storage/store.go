// Package storage implements the path-keyed, byte-addressable object store
// that every backend (text, vector, graph) writes its segments through.
// Three implementations share the same Store contract: Local (file-backed),
// Remote (S3-compatible), and Cached (a layered read-through/write-through
// view over the other two).
package storage

import (
	"context"

	"github.com/prism-search/prism/internal/perr"
)

// ByteRange is an inclusive-start, exclusive-end byte window, used for
// partial reads of large segment files.
type ByteRange struct {
	Offset int64
	Length int64
}

// ObjectInfo describes a stored object without its contents.
type ObjectInfo struct {
	Path string
	Size int64
}

// Store is the storage abstraction every backend writes segments through.
// Writes are atomic: a commit is durable only once Write (or Rename, for a
// staged write) returns success.
type Store interface {
	// Write atomically replaces the object at path with data: write to a
	// scratch location, then commit with a single atomic operation.
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the full contents of path.
	Read(ctx context.Context, path string) ([]byte, error)

	// ReadRange returns the contents of path within the given byte range.
	ReadRange(ctx context.Context, path string, r ByteRange) ([]byte, error)

	// Exists reports whether path is present, distinct from an I/O error.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns every object whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error

	// Rename atomically moves the object at from to to.
	Rename(ctx context.Context, from, to string) error
}

// notFound builds the not-found error every implementation returns for a
// missing path, distinct from an I/O error per spec.md §4.1's failure modes.
func notFound(path string) error {
	return perr.NotFound("storage.object_not_found", "object not found: "+path)
}

// ioError wraps an underlying I/O failure, redacting its detail from the
// caller-visible message while preserving it for logging.
func ioError(op, path string, cause error) error {
	return perr.IO("storage."+op, cause)
}
