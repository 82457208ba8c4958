package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dmap/internal/kv"
)

// Get implements kv.Reader.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	return sqlReader{q: s.db}.Get(ctx, key)
}

// Has implements kv.Reader.
func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	return sqlReader{q: s.db}.Has(ctx, key)
}

// Scan implements kv.Reader. Rows are fully read and closed before fn is
// called, so fn may issue further store calls.
func (s *Store) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	if err := s.checkOpen(); err != nil {
		s.mu.RUnlock()
		return err
	}
	var matches []kv.Mutation
	err := sqlReader{q: s.db}.Scan(ctx, prefix, func(key, value []byte) error {
		matches = append(matches, kv.Mutation{Key: key, Value: value})
		return nil
	})
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	for _, m := range matches {
		if err := fn(m.Key, m.Value); err != nil {
			if errors.Is(err, kv.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Update implements kv.Store.
//
// fn runs against an overlay whose reads go through the open transaction.
// If fn succeeds, every staged mutation is applied in that transaction and
// committed; otherwise the transaction is rolled back.
func (s *Store) Update(ctx context.Context, fn func(kv.Txn) error) error {
	return s.update(ctx, fn, nil)
}

// update is Update with a hook that runs in the transaction after the
// staged mutations are applied and before commit.
func (s *Store) update(ctx context.Context, fn func(kv.Txn) error, beforeCommit func(*sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	overlay := kv.NewOverlay(sqlReader{q: tx})
	if err := fn(overlay); err != nil {
		return err
	}

	for _, m := range overlay.Mutations() {
		if m.Delete {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, m.Key); err != nil {
				return fmt.Errorf("update: delete: %w", err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv_entries (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, m.Key, m.Value)
		if err != nil {
			return fmt.Errorf("update: put: %w", err)
		}
	}

	if beforeCommit != nil {
		if err := beforeCommit(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update: commit: %w", err)
	}
	return nil
}

// sqlReader implements kv.Reader over a *sql.DB or *sql.Tx.
type sqlReader struct {
	q querier
}

func (r sqlReader) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := r.q.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (r sqlReader) Has(ctx context.Context, key []byte) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_entries WHERE key = ?`, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has: %w", err)
	}
	return count > 0, nil
}

// Scan reads the primary-key range for prefix in ascending key order.
func (r sqlReader) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var (
		rows *sql.Rows
		err  error
	)
	end := kv.PrefixEnd(prefix)
	switch {
	case len(prefix) == 0:
		rows, err = r.q.QueryContext(ctx, `SELECT key, value FROM kv_entries ORDER BY key ASC`)
	case end != nil:
		rows, err = r.q.QueryContext(ctx, `
			SELECT key, value FROM kv_entries
			WHERE key >= ? AND key < ?
			ORDER BY key ASC
		`, prefix, end)
	default:
		rows, err = r.q.QueryContext(ctx, `
			SELECT key, value FROM kv_entries
			WHERE key >= ?
			ORDER BY key ASC
		`, prefix)
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan: read row: %w", err)
		}
		if value == nil {
			value = []byte{}
		}
		if err := fn(key, value); err != nil {
			if errors.Is(err, kv.ErrStop) {
				return nil
			}
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan: iterate: %w", err)
	}
	return nil
}
