// Package blobstore abstracts durable storage of whole data blobs, primarily
// the fingerprint snapshot. Fallback scanning needs the entire snapshot in
// memory anyway, so the contract is whole-blob Get/Put rather than ranged
// reads.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations must return an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blob not found")

// Store is an abstraction over durable blob storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the full contents of the named blob,
	// or ErrNotFound if it does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put writes the blob atomically: readers observe either the previous
	// contents or the new contents, never a partial write.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
