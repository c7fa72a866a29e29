package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Storage is the object store used for audit archives.
type Storage interface {
	// Put stores an object, overwriting any existing one.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get opens an object. Returns ErrNotFound when missing.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
