package registry

import (
	"context"

	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
)

// IsMember reports whether m has joined.
func (r *Registry) IsMember(ctx context.Context, m ir.AccountID) (bool, error) {
	return r.members.Contains(ctx, r.kv, m)
}

// Members returns every member in ascending id order.
func (r *Registry) Members(ctx context.Context) ([]ir.AccountID, error) {
	return r.members.Members(ctx, r.kv)
}

// GroupOf returns the group m is assigned to.
func (r *Registry) GroupOf(ctx context.Context, m ir.AccountID) (ir.GroupID, bool, error) {
	return r.groups.Get(ctx, r.kv, m)
}

// ScoreOf returns m's score in the group it is currently assigned to.
// ok is false if m has no group or its group was cleared.
//
// Both lookups run in one transaction, so the score always belongs to the
// group m held at that point.
func (r *Registry) ScoreOf(ctx context.Context, m ir.AccountID) (ir.Score, bool, error) {
	var (
		score ir.Score
		ok    bool
	)
	err := r.view(ctx, func(tx kv.Txn) error {
		g, linked, err := r.groups.Get(ctx, tx, m)
		if err != nil || !linked {
			return err
		}
		score, ok, err = r.scores.Get(ctx, tx, g, m)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return score, ok, nil
}

// ScoreIn returns the score row (g, m).
func (r *Registry) ScoreIn(ctx context.Context, g ir.GroupID, m ir.AccountID) (ir.Score, bool, error) {
	return r.scores.Get(ctx, r.kv, g, m)
}

// GroupScores returns every score row of g in ascending member order.
func (r *Registry) GroupScores(ctx context.Context, g ir.GroupID) ([]ir.ScoreEntry, error) {
	rows := []ir.ScoreEntry{}
	err := r.scores.Iterate(ctx, r.kv, g, func(m ir.AccountID, s ir.Score) error {
		rows = append(rows, ir.ScoreEntry{Group: g, Member: m, Score: s})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// State is a full copy of the registry's stores.
type State struct {
	Members []ir.AccountID              `json:"members" yaml:"members"`
	Groups  map[ir.AccountID]ir.GroupID `json:"groups" yaml:"groups"`
	Scores  []ir.ScoreEntry             `json:"scores" yaml:"scores"`
}

// Snapshot reads all three stores in one transaction.
func (r *Registry) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := r.view(ctx, func(tx kv.Txn) error {
		var err error
		st, err = r.snapshot(ctx, tx)
		return err
	})
	return st, err
}

func (r *Registry) snapshot(ctx context.Context, tx kv.Reader) (State, error) {
	st := State{
		Groups: map[ir.AccountID]ir.GroupID{},
		Scores: []ir.ScoreEntry{},
	}
	var err error
	if st.Members, err = r.members.Members(ctx, tx); err != nil {
		return State{}, err
	}
	err = r.groups.Iterate(ctx, tx, func(m ir.AccountID, g ir.GroupID) error {
		st.Groups[m] = g
		return nil
	})
	if err != nil {
		return State{}, err
	}
	err = r.scores.IterateAll(ctx, tx, func(g ir.GroupID, m ir.AccountID, s ir.Score) error {
		st.Scores = append(st.Scores, ir.ScoreEntry{Group: g, Member: m, Score: s})
		return nil
	})
	if err != nil {
		return State{}, err
	}
	return st, nil
}

// view runs a read-only fn against a consistent snapshot. fn stages no
// writes, so the commit is empty.
func (r *Registry) view(ctx context.Context, fn func(kv.Txn) error) error {
	return r.kv.Update(ctx, fn)
}
