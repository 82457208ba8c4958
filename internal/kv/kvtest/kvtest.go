// Package kvtest provides a conformance suite every kv.Store backend must pass.
package kvtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmap/internal/kv"
)

// Factory creates a fresh, empty store for one subtest.
type Factory func(t *testing.T) kv.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s kv.Store)
	}{
		{"GetAbsent", testGetAbsent},
		{"PutGet", testPutGet},
		{"Overwrite", testOverwrite},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"ScanPrefixOrdered", testScanPrefixOrdered},
		{"ScanStop", testScanStop},
		{"UpdateRollsBackOnError", testUpdateRollsBackOnError},
		{"ReadYourWrites", testReadYourWrites},
		{"DeleteDuringScan", testDeleteDuringScan},
		{"EmptyValue", testEmptyValue},
		{"CancelledContext", testCancelledContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func put(t *testing.T, s kv.Store, pairs ...string) {
	t.Helper()
	require.Zero(t, len(pairs)%2, "pairs must be key/value")
	err := s.Update(context.Background(), func(tx kv.Txn) error {
		for i := 0; i < len(pairs); i += 2 {
			if err := tx.Put([]byte(pairs[i]), []byte(pairs[i+1])); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func scanKeys(t *testing.T, r kv.Reader, prefix string) []string {
	t.Helper()
	keys := []string{}
	err := r.Scan(context.Background(), []byte(prefix), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	return keys
}

func testGetAbsent(t *testing.T, s kv.Store) {
	ctx := context.Background()
	v, ok, err := s.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	has, err := s.Has(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.False(t, has)
}

func testPutGet(t *testing.T, s kv.Store) {
	put(t, s, "a", "1")

	v, ok, err := s.Get(context.Background(), []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func testOverwrite(t *testing.T, s kv.Store) {
	put(t, s, "a", "1")
	put(t, s, "a", "2")

	v, ok, err := s.Get(context.Background(), []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("2"), v)
}

func testDeleteIdempotent(t *testing.T, s kv.Store) {
	ctx := context.Background()
	put(t, s, "a", "1")

	for i := 0; i < 2; i++ {
		err := s.Update(ctx, func(tx kv.Txn) error {
			return tx.Delete([]byte("a"))
		})
		require.NoError(t, err)
	}

	has, err := s.Has(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, has)
}

func testScanPrefixOrdered(t *testing.T, s kv.Store) {
	put(t, s,
		"g/2/b", "x",
		"g/1/b", "x",
		"g/1/a", "x",
		"g/10/a", "x",
		"h/1/a", "x",
		"g", "x",
	)

	assert.Equal(t, []string{"g/1/a", "g/1/b", "g/10/a"}, scanKeys(t, s, "g/1"))
	assert.Equal(t, []string{"g/1/a", "g/1/b"}, scanKeys(t, s, "g/1/"))
	assert.Equal(t, []string{}, scanKeys(t, s, "z"))
	assert.Len(t, scanKeys(t, s, ""), 6)
}

func testScanStop(t *testing.T, s kv.Store) {
	put(t, s, "p/1", "x", "p/2", "x", "p/3", "x")

	var seen int
	err := s.Scan(context.Background(), []byte("p/"), func(_, _ []byte) error {
		seen++
		if seen == 2 {
			return kv.ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}

func testUpdateRollsBackOnError(t *testing.T, s kv.Store) {
	ctx := context.Background()
	put(t, s, "keep", "1")
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx kv.Txn) error {
		require.NoError(t, tx.Put([]byte("new"), []byte("1")))
		require.NoError(t, tx.Delete([]byte("keep")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	has, err := s.Has(ctx, []byte("new"))
	require.NoError(t, err)
	assert.False(t, has, "staged put must be discarded")

	has, err = s.Has(ctx, []byte("keep"))
	require.NoError(t, err)
	assert.True(t, has, "staged delete must be discarded")
}

func testReadYourWrites(t *testing.T, s kv.Store) {
	ctx := context.Background()
	put(t, s, "p/1", "old", "p/2", "x")

	err := s.Update(ctx, func(tx kv.Txn) error {
		require.NoError(t, tx.Put([]byte("p/1"), []byte("new")))
		require.NoError(t, tx.Put([]byte("p/3"), []byte("x")))
		require.NoError(t, tx.Delete([]byte("p/2")))

		v, ok, err := tx.Get(ctx, []byte("p/1"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("new"), v)

		has, err := tx.Has(ctx, []byte("p/2"))
		require.NoError(t, err)
		assert.False(t, has)

		assert.Equal(t, []string{"p/1", "p/3"}, scanKeys(t, tx, "p/"))

		// Not yet visible outside the transaction.
		has, err = s.Has(ctx, []byte("p/3"))
		require.NoError(t, err)
		assert.False(t, has)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"p/1", "p/3"}, scanKeys(t, s, "p/"))
}

func testDeleteDuringScan(t *testing.T, s kv.Store) {
	ctx := context.Background()
	put(t, s, "p/1", "x", "p/2", "x", "p/3", "x", "q/1", "x")

	var removed int
	err := s.Update(ctx, func(tx kv.Txn) error {
		return tx.Scan(ctx, []byte("p/"), func(key, _ []byte) error {
			removed++
			return tx.Delete(key)
		})
	})
	require.NoError(t, err)

	assert.Equal(t, 3, removed)
	assert.Equal(t, []string{}, scanKeys(t, s, "p/"))
	assert.Equal(t, []string{"q/1"}, scanKeys(t, s, "q/"))
}

func testEmptyValue(t *testing.T, s kv.Store) {
	ctx := context.Background()
	err := s.Update(ctx, func(tx kv.Txn) error {
		return tx.Put([]byte("set/1"), nil)
	})
	require.NoError(t, err)

	v, ok, err := s.Get(ctx, []byte("set/1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func testCancelledContext(t *testing.T, s kv.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(tx kv.Txn) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
