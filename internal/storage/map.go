package storage

import (
	"context"
	"fmt"

	"github.com/roach88/dmap/internal/kv"
)

// Map is a single-key typed store under a fixed prefix.
type Map[K, V any] struct {
	prefix []byte
	key    KeyCodec[K]
	val    ValueCodec[V]
}

// NewMap returns a map whose keys live under prefix.
func NewMap[K, V any](prefix string, key KeyCodec[K], val ValueCodec[V]) *Map[K, V] {
	return &Map[K, V]{prefix: []byte(prefix), key: key, val: val}
}

// Key returns the raw kv key for k.
func (m *Map[K, V]) Key(k K) []byte {
	b := make([]byte, len(m.prefix)+m.key.Size())
	copy(b, m.prefix)
	m.key.Encode(b[len(m.prefix):], k)
	return b
}

// Prefix returns the raw prefix shared by every key of the map.
func (m *Map[K, V]) Prefix() []byte {
	return append([]byte(nil), m.prefix...)
}

// Get returns the value stored under k, or ok=false if none.
func (m *Map[K, V]) Get(ctx context.Context, r kv.Reader, k K) (v V, ok bool, err error) {
	raw, ok, err := r.Get(ctx, m.Key(k))
	if err != nil || !ok {
		return v, false, err
	}
	v, err = m.val.Decode(raw)
	if err != nil {
		return v, false, fmt.Errorf("%s: %w", m.prefix, err)
	}
	return v, true, nil
}

// GetOrDefault returns the value stored under k, or the zero value.
func (m *Map[K, V]) GetOrDefault(ctx context.Context, r kv.Reader, k K) (V, error) {
	v, _, err := m.Get(ctx, r, k)
	return v, err
}

// Contains reports whether k has a stored value.
func (m *Map[K, V]) Contains(ctx context.Context, r kv.Reader, k K) (bool, error) {
	return r.Has(ctx, m.Key(k))
}

// Put inserts or overwrites the value under k.
func (m *Map[K, V]) Put(w kv.Writer, k K, v V) error {
	return w.Put(m.Key(k), m.val.Encode(v))
}

// Remove deletes k. Removing an absent key is a no-op.
func (m *Map[K, V]) Remove(w kv.Writer, k K) error {
	return w.Delete(m.Key(k))
}

// Take removes k and returns the value it held.
func (m *Map[K, V]) Take(ctx context.Context, tx kv.Txn, k K) (V, bool, error) {
	v, ok, err := m.Get(ctx, tx, k)
	if err != nil || !ok {
		return v, ok, err
	}
	return v, true, m.Remove(tx, k)
}

// Iterate calls fn for every entry in ascending key order.
// Returning kv.ErrStop from fn ends iteration without error.
func (m *Map[K, V]) Iterate(ctx context.Context, r kv.Reader, fn func(K, V) error) error {
	return r.Scan(ctx, m.prefix, func(key, raw []byte) error {
		if len(key) != len(m.prefix)+m.key.Size() {
			return fmt.Errorf("%s: malformed key %x", m.prefix, key)
		}
		v, err := m.val.Decode(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", m.prefix, err)
		}
		return fn(m.key.Decode(key[len(m.prefix):]), v)
	})
}

// Set is a typed key set.
type Set[K any] struct {
	m *Map[K, Unit]
}

// NewSet returns a set whose keys live under prefix.
func NewSet[K any](prefix string, key KeyCodec[K]) *Set[K] {
	return &Set[K]{m: NewMap[K, Unit](prefix, key, UnitValue{})}
}

// Insert adds k. Inserting an existing key is a no-op.
func (s *Set[K]) Insert(w kv.Writer, k K) error {
	return s.m.Put(w, k, Unit{})
}

// Contains reports whether k is in the set.
func (s *Set[K]) Contains(ctx context.Context, r kv.Reader, k K) (bool, error) {
	return s.m.Contains(ctx, r, k)
}

// Remove deletes k.
func (s *Set[K]) Remove(w kv.Writer, k K) error {
	return s.m.Remove(w, k)
}

// Members returns every key in ascending order.
func (s *Set[K]) Members(ctx context.Context, r kv.Reader) ([]K, error) {
	keys := []K{}
	err := s.m.Iterate(ctx, r, func(k K, _ Unit) error {
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
