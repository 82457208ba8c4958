package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store is closed")

// ErrStop may be returned by a Scan callback to end the scan early.
// Scan itself then returns nil.
var ErrStop = errors.New("kv: stop scan")

// Reader provides read access to committed (or, within a Txn, staged) state.
type Reader interface {
	// Get returns the value stored under key. ok is false if the key is absent.
	Get(ctx context.Context, key []byte) (value []byte, ok bool, err error)

	// Has reports whether key is present.
	Has(ctx context.Context, key []byte) (bool, error)

	// Scan calls fn for every key starting with prefix, in ascending key order.
	// The slices passed to fn are owned by the callee and may be retained.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
}

// Writer stages mutations.
type Writer interface {
	// Put stages an insert or overwrite of key.
	Put(key, value []byte) error

	// Delete stages the removal of key. Deleting an absent key is a no-op.
	Delete(key []byte) error
}

// Txn is a read-your-writes view used inside Store.Update.
type Txn interface {
	Reader
	Writer
}

// Store is a persistent ordered key-value map.
type Store interface {
	Reader

	// Update runs fn inside a transaction. If fn returns nil every write it
	// staged is committed atomically; otherwise none are and fn's error is
	// returned unchanged.
	Update(ctx context.Context, fn func(Txn) error) error

	// Close releases the store. Close is idempotent.
	Close() error
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil if no such key exists (the prefix is all 0xff bytes).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
