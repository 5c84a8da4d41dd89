// Package kvstore defines the ordered key/value store the ledger and the double spend registry
// persist into. Backends are selected by URL scheme through the factory package.
package kvstore

import (
	"context"
)

// Reader is the read side shared by a Store and its snapshots.
type Reader interface {
	// Get returns a copy of the value stored under key, or an errors.ErrNotFound error.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// NewIterator returns an iterator over every key starting with prefix, in ascending
	// bytewise key order. A nil prefix iterates the whole store.
	NewIterator(ctx context.Context, prefix []byte) Iterator
}

// Store is an ordered key/value store with atomic batched writes.
type Store interface {
	Reader

	// NewSnapshot returns a consistent read-only view of the store. The snapshot must be released.
	NewSnapshot(ctx context.Context) (Snapshot, error)

	// Write applies every operation staged in batch atomically.
	Write(ctx context.Context, batch *Batch) error

	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Close() error
}

type Snapshot interface {
	Reader
	Release()
}

// Iterator is positioned on the first entry when it is returned. Key and Value return copies
// that stay valid after Next. Any failure makes Valid return false and is reported by Error.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Error() error
	Release()
}
