// Package storage defines the durable key/value seam used to keep client
// session data across restarts. Backends live in the memory and sqlite
// subpackages.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by every operation on a closed backend.
var ErrClosed = errors.New("storage: backend is closed")

// KV is a string key/value store. Implementations must be safe for
// concurrent use.
type KV interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; err is reserved for backend failures.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}
