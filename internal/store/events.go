package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
)

var _ eventlog.AtomicLog = (*Store)(nil)

// Append writes an event to the log in its own transaction and returns it
// stamped with its seq and content-addressed ID. An unset seq becomes one
// past the current maximum; a set one must exceed it.
func (s *Store) Append(ctx context.Context, ev ir.Event) (ir.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return ir.Event{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	ev, err = appendTx(ctx, tx, ev)
	if err != nil {
		return ir.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return ir.Event{}, fmt.Errorf("append event: commit: %w", err)
	}
	return ev, nil
}

// UpdateAppend implements eventlog.AtomicLog. The state change fn stages
// and the event it returns are written in one transaction.
func (s *Store) UpdateAppend(ctx context.Context, fn func(kv.Txn) (ir.Event, error)) (ir.Event, error) {
	var ev ir.Event
	err := s.update(ctx, func(tx kv.Txn) error {
		var err error
		ev, err = fn(tx)
		return err
	}, func(tx *sql.Tx) error {
		var err error
		ev, err = appendTx(ctx, tx, ev)
		return err
	})
	if err != nil {
		return ir.Event{}, err
	}
	return ev, nil
}

func appendTx(ctx context.Context, tx *sql.Tx, ev ir.Event) (ir.Event, error) {
	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&last); err != nil {
		return ir.Event{}, fmt.Errorf("append event: last seq: %w", err)
	}

	seq, err := eventlog.NextSeq(ev, last)
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: %w", err)
	}
	ev.Seq = seq
	if ev.Args == nil {
		ev.Args = ir.Args{}
	}
	id, err := ir.EventID(ev)
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: %w", err)
	}
	ev.ID = id

	args, err := marshalArgs(ev.Args)
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (seq, id, call_id, kind, args, event_version)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.Seq, ev.ID, ev.CallID, string(ev.Kind), args, ir.EventVersion)
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: insert: %w", err)
	}
	return ev, nil
}

// ReadEvents returns events with seq > after in ascending seq order.
// limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if no events match.
func (s *Store) ReadEvents(ctx context.Context, after int64, limit int) ([]ir.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, call_id, kind, args
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			ev   ir.Event
			kind string
			args string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.CallID, &kind, &args); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = ir.EventKind(kind)
		if ev.Args, err = unmarshalArgs(args); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the seq of the newest event, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var last int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&last); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return last, nil
}

// marshalArgs converts event args to canonical JSON TEXT for storage.
func marshalArgs(args ir.Args) (string, error) {
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses stored event args.
func unmarshalArgs(data string) (ir.Args, error) {
	args := ir.Args{}
	if data == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}
