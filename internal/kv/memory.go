package kv

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/google/btree"
)

// btreeDegree is the B-tree branching factor.
const btreeDegree = 32

type entry struct {
	key   []byte
	value []byte
}

func lessEntry(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Memory is an in-process Store backed by an ordered B-tree.
//
// Thread-safety: reads take a shared lock; Update holds the exclusive lock
// for the whole transaction, so updates are serial.
type Memory struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[entry]
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tree: btree.NewG[entry](btreeDegree, lessEntry)}
}

// Get implements Reader.
func (m *Memory) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	return treeReader{m.tree}.Get(ctx, key)
}

// Has implements Reader.
func (m *Memory) Has(ctx context.Context, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	return treeReader{m.tree}.Has(ctx, key)
}

// Scan implements Reader. Matches are copied out under the read lock and fn
// runs without holding it.
func (m *Memory) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	var matches []entry
	_ = treeReader{m.tree}.Scan(ctx, prefix, func(key, value []byte) error {
		matches = append(matches, entry{key: key, value: value})
		return nil
	})
	m.mu.RUnlock()

	for _, e := range matches {
		if err := fn(e.key, e.value); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	tx := NewOverlay(treeReader{m.tree})
	if err := fn(tx); err != nil {
		return err
	}

	for _, mut := range tx.Mutations() {
		if mut.Delete {
			m.tree.Delete(entry{key: mut.Key})
			continue
		}
		m.tree.ReplaceOrInsert(entry{key: mut.Key, value: mut.Value})
	}
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// treeReader reads a B-tree without locking. Callers hold Memory.mu.
type treeReader struct {
	tree *btree.BTreeG[entry]
}

func (r treeReader) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	e, ok := r.tree.Get(entry{key: key})
	if !ok {
		return nil, false, nil
	}
	return clone(e.value), true, nil
}

func (r treeReader) Has(_ context.Context, key []byte) (bool, error) {
	return r.tree.Has(entry{key: key}), nil
}

func (r treeReader) Scan(_ context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var err error
	r.tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if !bytes.HasPrefix(e.key, prefix) {
			return false
		}
		err = fn(clone(e.key), clone(e.value))
		return err == nil
	})
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
