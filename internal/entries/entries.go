// Package entries is a single-key value map: each account may store one
// uint32. Reads of an absent account fail with ErrNoValueStored, and
// Increase rejects additions that would overflow instead of wrapping.
package entries

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
	"github.com/roach88/dmap/internal/storage"
)

// Prefix is the key prefix of stored values.
const Prefix = "entries/"

// Operation names used in errors.
const (
	OpSet      = "set_single_entry"
	OpGet      = "get_single_entry"
	OpTake     = "take_single_entry"
	OpIncrease = "increase_single_entry"
)

var (
	// ErrNoValueStored rejects reads of an account that stores nothing.
	ErrNoValueStored = errors.New("value not stored for account")

	// ErrArithmeticOverflow rejects an increase past math.MaxUint32.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)

// Entries is the account value map.
type Entries struct {
	kv     kv.Store
	commit *eventlog.Committer
	log    zerolog.Logger
	values *storage.Map[ir.AccountID, uint32]
}

// New creates an Entries over store. A nil sink discards events.
func New(store kv.Store, sink eventlog.Sink, log zerolog.Logger) *Entries {
	return &Entries{
		kv:     store,
		commit: eventlog.NewCommitter(store, sink, log),
		log:    log,
		values: storage.NewMap(Prefix, storage.AccountKey, storage.U32Value),
	}
}

// Set stores value for caller, replacing any previous value.
func (e *Entries) Set(ctx context.Context, caller ir.AccountID, value uint32) (ir.Event, error) {
	ev, err := e.commit.Commit(ctx, func(tx kv.Txn) (ir.Event, error) {
		return ir.EntrySet(caller, value), e.values.Put(tx, caller, value)
	})
	if err != nil {
		return ir.Event{}, e.reject(OpSet, caller, err)
	}
	return ev, nil
}

// Get reads the value stored for account. The event names the caller.
func (e *Entries) Get(ctx context.Context, caller, account ir.AccountID) (ir.Event, error) {
	ev, err := e.commit.Commit(ctx, func(tx kv.Txn) (ir.Event, error) {
		v, ok, err := e.values.Get(ctx, tx, account)
		if err != nil {
			return ir.Event{}, err
		}
		if !ok {
			return ir.Event{}, ErrNoValueStored
		}
		return ir.EntryGot(caller, v), nil
	})
	if err != nil {
		return ir.Event{}, e.reject(OpGet, caller, err)
	}
	return ev, nil
}

// Take removes and returns caller's value.
func (e *Entries) Take(ctx context.Context, caller ir.AccountID) (ir.Event, error) {
	ev, err := e.commit.Commit(ctx, func(tx kv.Txn) (ir.Event, error) {
		v, ok, err := e.values.Take(ctx, tx, caller)
		if err != nil {
			return ir.Event{}, err
		}
		if !ok {
			return ir.Event{}, ErrNoValueStored
		}
		return ir.EntryTaken(caller, v), nil
	})
	if err != nil {
		return ir.Event{}, e.reject(OpTake, caller, err)
	}
	return ev, nil
}

// Increase adds add to caller's stored value.
func (e *Entries) Increase(ctx context.Context, caller ir.AccountID, add uint32) (ir.Event, error) {
	ev, err := e.commit.Commit(ctx, func(tx kv.Txn) (ir.Event, error) {
		old, ok, err := e.values.Get(ctx, tx, caller)
		if err != nil {
			return ir.Event{}, err
		}
		if !ok {
			return ir.Event{}, ErrNoValueStored
		}
		if add > math.MaxUint32-old {
			return ir.Event{}, ErrArithmeticOverflow
		}
		return ir.EntryIncreased(caller, old, old+add), e.values.Put(tx, caller, old+add)
	})
	if err != nil {
		return ir.Event{}, e.reject(OpIncrease, caller, err)
	}
	return ev, nil
}

// Value returns the value stored for account without emitting an event.
func (e *Entries) Value(ctx context.Context, account ir.AccountID) (uint32, bool, error) {
	return e.values.Get(ctx, e.kv, account)
}

func (e *Entries) reject(op string, caller ir.AccountID, err error) error {
	if errors.Is(err, ErrNoValueStored) || errors.Is(err, ErrArithmeticOverflow) {
		e.log.Debug().Str("op", op).Uint64("caller", uint64(caller)).Err(err).Msg("call rejected")
		return &ir.CallError{Op: op, Caller: caller, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
