package registry

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
)

// ViolationKind names a broken cross-store relation.
type ViolationKind string

const (
	// ViolationOrphanScore is a score row whose member is not linked to its group.
	ViolationOrphanScore ViolationKind = "orphan_score"

	// ViolationOrphanLink is a group link whose member has not joined.
	ViolationOrphanLink ViolationKind = "orphan_link"

	// ViolationMultipleScores is a member holding more than one score row.
	ViolationMultipleScores ViolationKind = "multiple_scores"
)

// Violation is one integrity failure found by CheckIntegrity.
type Violation struct {
	Kind   ViolationKind `json:"kind"`
	Member ir.AccountID  `json:"member"`
	Group  ir.GroupID    `json:"group"`
	Detail string        `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: member=%d group=%d: %s", v.Kind, v.Member, v.Group, v.Detail)
}

// CheckIntegrity scans all three stores and returns every violated
// relation. An empty result means the stores are consistent.
func (r *Registry) CheckIntegrity(ctx context.Context) ([]Violation, error) {
	var violations []Violation
	err := r.view(ctx, func(tx kv.Txn) error {
		st, err := r.snapshot(ctx, tx)
		if err != nil {
			return err
		}
		violations = checkState(st)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check integrity: %w", err)
	}
	return violations, nil
}

func checkState(st State) []Violation {
	violations := []Violation{}

	members := make(map[ir.AccountID]bool, len(st.Members))
	for _, m := range st.Members {
		members[m] = true
	}

	for m, g := range st.Groups {
		if !members[m] {
			violations = append(violations, Violation{
				Kind: ViolationOrphanLink, Member: m, Group: g,
				Detail: "group link for an account that is not a member",
			})
		}
	}

	rows := map[ir.AccountID]int{}
	for _, s := range st.Scores {
		rows[s.Member]++
		g, ok := st.Groups[s.Member]
		switch {
		case !ok:
			violations = append(violations, Violation{
				Kind: ViolationOrphanScore, Member: s.Member, Group: s.Group,
				Detail: "score row for a member with no group",
			})
		case g != s.Group:
			violations = append(violations, Violation{
				Kind: ViolationOrphanScore, Member: s.Member, Group: s.Group,
				Detail: fmt.Sprintf("score row outside the member's group %d", g),
			})
		}
	}
	for _, s := range st.Scores {
		if n := rows[s.Member]; n > 1 {
			violations = append(violations, Violation{
				Kind: ViolationMultipleScores, Member: s.Member, Group: s.Group,
				Detail: fmt.Sprintf("member holds %d score rows", n),
			})
		}
	}

	slices.SortFunc(violations, func(a, b Violation) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Member, b.Member),
			cmp.Compare(a.Group, b.Group),
		)
	})
	return violations
}
