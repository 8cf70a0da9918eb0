package repo

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned by Lock when the context ends before the lock
// is acquired.
var ErrLockTimeout = errors.New("state lock not acquired")

// Unlock releases a lock obtained from Store.Lock.
type Unlock func() error

// Store is a small string key/value state store. Handlers keep their
// dedup fingerprints and open ticket ids in one.
//
// Every backend persists each mutation before returning, so state survives
// a failure later in the same invocation.
type Store interface {
	// Get returns ok=false if the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns a snapshot of every entry.
	List(ctx context.Context) (map[string]string, error)
	// DeleteUnchanged removes each key of expected whose stored value still
	// equals the expected one, in a single atomic step, and returns how many
	// were removed. Keys rewritten since the caller read them are kept.
	DeleteUnchanged(ctx context.Context, expected map[string]string) (int, error)
	// Lock gives the caller a single-writer section for key, shared with
	// other processes using the same backend. Blocks until acquired or ctx
	// ends.
	Lock(ctx context.Context, key string) (Unlock, error)
}
