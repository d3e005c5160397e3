// Package snapstore is the client side of the snapshot store:
// append-only, path-addressed blobs that are immutable once written.
// The production store is object storage; the filesystem
// implementation here serves development and tests and keeps the same
// key contract.
package snapstore

import "context"

// Store is the minimal surface the engine needs from the snapshot
// store. Implementations must treat written blobs as immutable: Put to
// an existing key is an error, never an overwrite.
type Store interface {
	// Put writes a blob under key and returns its URI.
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get reads the blob stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns all keys under prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)
	// Move relocates a blob (copy + delete). Used for the
	// incoming -> loaded lifecycle transition.
	Move(ctx context.Context, src, dst string) error
	// URI returns the canonical URI for a key without touching the blob.
	URI(key string) string
}
