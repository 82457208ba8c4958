package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
	"github.com/roach88/dmap/internal/storage"
)

// Key prefixes of the three stores.
const (
	MembersPrefix = "members/"
	GroupsPrefix  = "groups/"
	ScoresPrefix  = "scores/"
)

// Operation names used in errors and logs.
const (
	OpJoin              = "join"
	OpAssignToGroup     = "assign_to_group"
	OpRemoveMember      = "remove_member"
	OpRemoveGroupScores = "remove_group_scores"
)

// Registry is the membership, group assignment and score registry.
//
// Registry holds no state of its own: everything lives in the kv.Store it
// was constructed with. Calls are serialised by the store's Update.
type Registry struct {
	kv     kv.Store
	commit *eventlog.Committer
	log    zerolog.Logger

	members *storage.Set[ir.AccountID]
	groups  *storage.Map[ir.AccountID, ir.GroupID]
	scores  *storage.DoubleMap[ir.GroupID, ir.AccountID, ir.Score]
}

// Option configures New.
type Option func(*Registry)

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// New creates a Registry over store. Events go to sink; a nil sink
// discards them. If sink is the store itself (see eventlog.AtomicLog), each
// call's state change and event commit in one transaction.
func New(store kv.Store, sink eventlog.Sink, opts ...Option) *Registry {
	r := &Registry{
		kv:      store,
		log:     zerolog.Nop(),
		members: storage.NewSet(MembersPrefix, storage.AccountKey),
		groups:  storage.NewMap(GroupsPrefix, storage.AccountKey, storage.GroupValue),
		scores:  storage.NewDoubleMap(ScoresPrefix, storage.GroupKey, storage.AccountKey, storage.ScoreValue),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.commit = eventlog.NewCommitter(store, sink, r.log)
	return r
}

// Join adds caller to the member set.
func (r *Registry) Join(ctx context.Context, caller ir.AccountID) (ir.Event, error) {
	ev, err := r.commit.Commit(ctx, func(tx kv.Txn) (ir.Event, error) {
		ok, err := r.members.Contains(ctx, tx, caller)
		if err != nil {
			return ir.Event{}, err
		}
		if ok {
			return ir.Event{}, ErrAlreadyMember
		}
		return ir.NewMember(caller), r.members.Insert(tx, caller)
	})
	if err != nil {
		return ir.Event{}, r.reject(OpJoin, caller, err)
	}
	return ev, nil
}

// AssignToGroup moves caller into group with the given score. Any score the
// caller held in its previous group (including the same group) is deleted
// first, so a member never holds more than one score row.
func (r *Registry) AssignToGroup(ctx context.Context, caller ir.AccountID, group ir.GroupID, score ir.Score) (ir.Event, error) {
	ev, err := r.commit.Commit(ctx, func(tx kv.Txn) (ir.Event, error) {
		if err := r.requireMember(ctx, tx, caller); err != nil {
			return ir.Event{}, err
		}
		prev, ok, err := r.groups.Get(ctx, tx, caller)
		if err != nil {
			return ir.Event{}, err
		}
		if ok {
			if err := r.scores.Remove(tx, prev, caller); err != nil {
				return ir.Event{}, err
			}
		}
		if err := r.groups.Put(tx, caller, group); err != nil {
			return ir.Event{}, err
		}
		return ir.MemberJoinsGroup(caller, group, score), r.scores.Put(tx, group, caller, score)
	})
	if err != nil {
		return ir.Event{}, r.reject(OpAssignToGroup, caller, err)
	}
	return ev, nil
}

// RemoveMember deletes caller from the member set together with its group
// link and score row.
func (r *Registry) RemoveMember(ctx context.Context, caller ir.AccountID) (ir.Event, error) {
	ev, err := r.commit.Commit(ctx, func(tx kv.Txn) (ir.Event, error) {
		if err := r.requireMember(ctx, tx, caller); err != nil {
			return ir.Event{}, err
		}
		if err := r.members.Remove(tx, caller); err != nil {
			return ir.Event{}, err
		}
		group, ok, err := r.groups.Take(ctx, tx, caller)
		if err != nil {
			return ir.Event{}, err
		}
		if ok {
			if err := r.scores.Remove(tx, group, caller); err != nil {
				return ir.Event{}, err
			}
		}
		return ir.RemoveMember(caller), nil
	})
	if err != nil {
		return ir.Event{}, r.reject(OpRemoveMember, caller, err)
	}
	return ev, nil
}

// RemoveGroupScores deletes every score row of group. The caller must be
// assigned to group. Group links, including the caller's, are kept.
func (r *Registry) RemoveGroupScores(ctx context.Context, caller ir.AccountID, group ir.GroupID) (ir.Event, error) {
	var removed int
	ev, err := r.commit.Commit(ctx, func(tx kv.Txn) (ir.Event, error) {
		current, ok, err := r.groups.Get(ctx, tx, caller)
		if err != nil {
			return ir.Event{}, err
		}
		if !ok || current != group {
			return ir.Event{}, ErrNotInGroup
		}
		removed, err = r.scores.RemovePrefix(ctx, tx, group)
		return ir.RemoveGroup(group), err
	})
	if err != nil {
		return ir.Event{}, r.reject(OpRemoveGroupScores, caller, err)
	}
	r.log.Debug().Uint32("group", uint32(group)).Int("removed", removed).Msg("group scores cleared")
	return ev, nil
}

func (r *Registry) requireMember(ctx context.Context, tx kv.Txn, caller ir.AccountID) error {
	ok, err := r.members.Contains(ctx, tx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAMember
	}
	return nil
}

// reject wraps a failed call. Precondition failures become *ir.CallError;
// anything else is an infrastructure error.
func (r *Registry) reject(op string, caller ir.AccountID, err error) error {
	switch {
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrNotAMember), errors.Is(err, ErrNotInGroup):
		r.log.Debug().Str("op", op).Uint64("caller", uint64(caller)).Err(err).Msg("call rejected")
		return &ir.CallError{Op: op, Caller: caller, Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
