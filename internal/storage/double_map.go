package storage

import (
	"context"
	"fmt"

	"github.com/roach88/dmap/internal/kv"
)

// DoubleMap is a two-level typed store: (k1, k2) -> v.
//
// All entries sharing k1 are contiguous in key order, so RemovePrefix and
// Iterate cost time proportional to the number of matching entries.
type DoubleMap[K1, K2, V any] struct {
	prefix []byte
	k1     KeyCodec[K1]
	k2     KeyCodec[K2]
	val    ValueCodec[V]
}

// NewDoubleMap returns a double map whose keys live under prefix.
func NewDoubleMap[K1, K2, V any](prefix string, k1 KeyCodec[K1], k2 KeyCodec[K2], val ValueCodec[V]) *DoubleMap[K1, K2, V] {
	return &DoubleMap[K1, K2, V]{prefix: []byte(prefix), k1: k1, k2: k2, val: val}
}

// PrefixKey returns the raw prefix shared by every entry with first key k1.
func (d *DoubleMap[K1, K2, V]) PrefixKey(k1 K1) []byte {
	b := make([]byte, len(d.prefix)+d.k1.Size())
	copy(b, d.prefix)
	d.k1.Encode(b[len(d.prefix):], k1)
	return b
}

// Key returns the raw kv key for (k1, k2).
func (d *DoubleMap[K1, K2, V]) Key(k1 K1, k2 K2) []byte {
	n := len(d.prefix) + d.k1.Size()
	b := make([]byte, n+d.k2.Size())
	copy(b, d.prefix)
	d.k1.Encode(b[len(d.prefix):n], k1)
	d.k2.Encode(b[n:], k2)
	return b
}

func (d *DoubleMap[K1, K2, V]) splitKey(key []byte) (K1, K2, error) {
	var (
		k1 K1
		k2 K2
	)
	n := len(d.prefix) + d.k1.Size()
	if len(key) != n+d.k2.Size() {
		return k1, k2, fmt.Errorf("%s: malformed key %x", d.prefix, key)
	}
	return d.k1.Decode(key[len(d.prefix):n]), d.k2.Decode(key[n:]), nil
}

// Put inserts or overwrites the value under (k1, k2).
func (d *DoubleMap[K1, K2, V]) Put(w kv.Writer, k1 K1, k2 K2, v V) error {
	return w.Put(d.Key(k1, k2), d.val.Encode(v))
}

// Get returns the value under (k1, k2), or ok=false if none.
func (d *DoubleMap[K1, K2, V]) Get(ctx context.Context, r kv.Reader, k1 K1, k2 K2) (v V, ok bool, err error) {
	raw, ok, err := r.Get(ctx, d.Key(k1, k2))
	if err != nil || !ok {
		return v, false, err
	}
	v, err = d.val.Decode(raw)
	if err != nil {
		return v, false, fmt.Errorf("%s: %w", d.prefix, err)
	}
	return v, true, nil
}

// GetOrDefault returns the value under (k1, k2), or the zero value.
func (d *DoubleMap[K1, K2, V]) GetOrDefault(ctx context.Context, r kv.Reader, k1 K1, k2 K2) (V, error) {
	v, _, err := d.Get(ctx, r, k1, k2)
	return v, err
}

// Contains reports whether (k1, k2) has a stored value.
func (d *DoubleMap[K1, K2, V]) Contains(ctx context.Context, r kv.Reader, k1 K1, k2 K2) (bool, error) {
	return r.Has(ctx, d.Key(k1, k2))
}

// Remove deletes (k1, k2). Removing an absent pair is a no-op.
func (d *DoubleMap[K1, K2, V]) Remove(w kv.Writer, k1 K1, k2 K2) error {
	return w.Delete(d.Key(k1, k2))
}

// RemovePrefix deletes every entry whose first key is k1 and returns how
// many were removed. Entries under any other first key are untouched.
func (d *DoubleMap[K1, K2, V]) RemovePrefix(ctx context.Context, tx kv.Txn, k1 K1) (int, error) {
	n := 0
	err := tx.Scan(ctx, d.PrefixKey(k1), func(key, _ []byte) error {
		if err := tx.Delete(key); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("%s: remove prefix: %w", d.prefix, err)
	}
	return n, nil
}

// Iterate calls fn for every entry with first key k1, in ascending k2 order.
// Returning kv.ErrStop from fn ends iteration without error.
func (d *DoubleMap[K1, K2, V]) Iterate(ctx context.Context, r kv.Reader, k1 K1, fn func(K2, V) error) error {
	return d.scan(ctx, r, d.PrefixKey(k1), func(_ K1, k2 K2, v V) error {
		return fn(k2, v)
	})
}

// IterateAll calls fn for every entry, ordered by (k1, k2).
func (d *DoubleMap[K1, K2, V]) IterateAll(ctx context.Context, r kv.Reader, fn func(K1, K2, V) error) error {
	return d.scan(ctx, r, d.prefix, fn)
}

func (d *DoubleMap[K1, K2, V]) scan(ctx context.Context, r kv.Reader, prefix []byte, fn func(K1, K2, V) error) error {
	return r.Scan(ctx, prefix, func(key, raw []byte) error {
		k1, k2, err := d.splitKey(key)
		if err != nil {
			return err
		}
		v, err := d.val.Decode(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.prefix, err)
		}
		return fn(k1, k2, v)
	})
}
