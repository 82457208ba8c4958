package kv

import (
	"bytes"
	"context"
	"errors"
	"sort"
)

// Mutation is one staged write.
type Mutation struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Overlay is a Txn that stages writes in memory on top of a base Reader.
// Backends use it to implement Update: run fn against an Overlay, then apply
// Mutations to durable state in one step.
type Overlay struct {
	base   Reader
	staged map[string]Mutation
}

// NewOverlay creates an empty overlay over base.
func NewOverlay(base Reader) *Overlay {
	return &Overlay{base: base, staged: make(map[string]Mutation)}
}

// Get implements Reader.
func (o *Overlay) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if m, ok := o.staged[string(key)]; ok {
		if m.Delete {
			return nil, false, nil
		}
		return clone(m.Value), true, nil
	}
	return o.base.Get(ctx, key)
}

// Has implements Reader.
func (o *Overlay) Has(ctx context.Context, key []byte) (bool, error) {
	if m, ok := o.staged[string(key)]; ok {
		return !m.Delete, nil
	}
	return o.base.Has(ctx, key)
}

// Scan implements Reader. Matches are collected before fn is first called,
// so fn may stage writes (including deletes of the visited keys).
func (o *Overlay) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var matches []Mutation
	err := o.base.Scan(ctx, prefix, func(key, value []byte) error {
		if _, shadowed := o.staged[string(key)]; !shadowed {
			matches = append(matches, Mutation{Key: key, Value: value})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, m := range o.staged {
		if !m.Delete && bytes.HasPrefix(m.Key, prefix) {
			matches = append(matches, Mutation{Key: clone(m.Key), Value: clone(m.Value)})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return bytes.Compare(matches[i].Key, matches[j].Key) < 0
	})

	for _, m := range matches {
		if err := fn(m.Key, m.Value); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Put implements Writer.
func (o *Overlay) Put(key, value []byte) error {
	o.staged[string(key)] = Mutation{Key: clone(key), Value: clone(value)}
	return nil
}

// Delete implements Writer.
func (o *Overlay) Delete(key []byte) error {
	o.staged[string(key)] = Mutation{Key: clone(key), Delete: true}
	return nil
}

// Mutations returns the staged writes in ascending key order.
func (o *Overlay) Mutations() []Mutation {
	out := make([]Mutation, 0, len(o.staged))
	for _, m := range o.staged {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Key, out[j].Key) < 0
	})
	return out
}

// Len returns the number of staged writes.
func (o *Overlay) Len() int {
	return len(o.staged)
}
