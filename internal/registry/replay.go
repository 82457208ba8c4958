package registry

import (
	"context"
	"fmt"

	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
)

// Replay re-executes the calls recorded in events, in order. Events of
// other modules are skipped. Each call carries its event's call id.
//
// A RemoveGroup event does not record its caller; any member currently
// assigned to the group is used, since the effect does not depend on which
// one made the call.
//
// Replay stops at the first call that fails: the log is then not a valid
// history for the registry's starting state.
func (r *Registry) Replay(ctx context.Context, events []ir.Event) (int, error) {
	applied := 0
	for _, ev := range events {
		callCtx := ctx
		if ev.CallID != "" {
			callCtx = eventlog.WithCallID(ctx, ev.CallID)
		}

		var err error
		switch ev.Kind {
		case ir.KindNewMember:
			_, err = r.Join(callCtx, ev.Member())
		case ir.KindMemberJoinsGroup:
			_, err = r.AssignToGroup(callCtx, ev.Member(), ev.Group(), ev.Score())
		case ir.KindRemoveMember:
			_, err = r.RemoveMember(callCtx, ev.Member())
		case ir.KindRemoveGroup:
			var caller ir.AccountID
			caller, err = r.memberOf(ctx, ev.Group())
			if err == nil {
				_, err = r.RemoveGroupScores(callCtx, caller, ev.Group())
			}
		default:
			continue
		}
		if err != nil {
			return applied, fmt.Errorf("replay event %d %s: %w", ev.Seq, ev, err)
		}
		applied++
	}
	return applied, nil
}

// memberOf returns the lowest member id assigned to g.
func (r *Registry) memberOf(ctx context.Context, g ir.GroupID) (ir.AccountID, error) {
	var (
		found  ir.AccountID
		exists bool
	)
	err := r.groups.Iterate(ctx, r.kv, func(m ir.AccountID, linked ir.GroupID) error {
		if linked != g {
			return nil
		}
		found, exists = m, true
		return kv.ErrStop
	})
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotInGroup
	}
	return found, nil
}
