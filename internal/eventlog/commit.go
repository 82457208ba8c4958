package eventlog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
)

// AtomicLog is a Log that records an event in the same transaction as the
// state change that produced it.
type AtomicLog interface {
	Log

	// UpdateAppend runs fn like kv.Store.Update and appends the event fn
	// returns before committing. An error from fn is returned unchanged and
	// nothing is written; a failed append rolls back the state change too.
	UpdateAppend(ctx context.Context, fn func(kv.Txn) (ir.Event, error)) (ir.Event, error)
}

// Committer applies a state change to a kv.Store and records the event it
// produced.
//
// When the sink, or the primary of a Multi sink, is an AtomicLog over the
// same store, the change and its event commit together and the followers
// see the event afterwards. Otherwise the event is appended once the change
// has committed, and a sink failure is reported without undoing it.
type Committer struct {
	store  kv.Store
	atomic AtomicLog
	sink   Sink
	log    zerolog.Logger
}

// NewCommitter binds store to sink. A nil sink discards events.
func NewCommitter(store kv.Store, sink Sink, log zerolog.Logger) *Committer {
	if sink == nil {
		sink = Discard{}
	}
	c := &Committer{store: store, sink: sink, log: log}

	switch s := sink.(type) {
	case AtomicLog:
		if sameStore(store, s) {
			c.atomic = s
			c.sink = Discard{}
		}
	case Multi:
		if a, ok := s.Primary.(AtomicLog); ok && sameStore(store, a) {
			c.atomic = a
			c.sink = Multi{Primary: Discard{}, Followers: s.Followers}
		}
	}
	return c
}

func sameStore(store kv.Store, log AtomicLog) bool {
	other, ok := log.(kv.Store)
	return ok && other == store
}

// Atomic reports whether events commit in the state transaction.
func (c *Committer) Atomic() bool {
	return c.atomic != nil
}

// Commit runs fn in one store update. fn returns the event describing its
// change; an error from fn discards the update and is returned unchanged.
// The event is stamped with the call id and seq attached to ctx.
func (c *Committer) Commit(ctx context.Context, fn func(kv.Txn) (ir.Event, error)) (ir.Event, error) {
	stamped := func(tx kv.Txn) (ir.Event, error) {
		ev, err := fn(tx)
		if err != nil {
			return ir.Event{}, err
		}
		ev.CallID = CallIDFrom(ctx)
		ev.Seq = SeqFrom(ctx)
		return ev, nil
	}

	if c.atomic != nil {
		ev, err := c.atomic.UpdateAppend(ctx, stamped)
		if err != nil {
			return ir.Event{}, err
		}
		if _, err := c.sink.Append(ctx, ev); err != nil {
			c.log.Warn().Err(err).Int64("seq", ev.Seq).Stringer("event", ev).Msg("event follower failed")
		}
		return ev, nil
	}

	var ev ir.Event
	err := c.store.Update(ctx, func(tx kv.Txn) error {
		var err error
		ev, err = stamped(tx)
		return err
	})
	if err != nil {
		return ir.Event{}, err
	}

	out, err := c.sink.Append(ctx, ev)
	if err != nil {
		c.log.Error().Err(err).Stringer("event", ev).Msg("event sink failed after commit")
		return ev, fmt.Errorf("emit %s: %w", ev.Kind, err)
	}
	return out, nil
}
