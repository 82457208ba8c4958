package engine

import (
	"fmt"

	"github.com/roach88/dmap/internal/ir"
)

// Op names an inbound call.
type Op string

// Registry calls.
const (
	OpJoin              Op = "join"
	OpAssignToGroup     Op = "assign_to_group"
	OpRemoveMember      Op = "remove_member"
	OpRemoveGroupScores Op = "remove_group_scores"
)

// Entries calls.
const (
	OpEntrySet      Op = "set_single_entry"
	OpEntryGet      Op = "get_single_entry"
	OpEntryTake     Op = "take_single_entry"
	OpEntryIncrease Op = "increase_single_entry"
)

// Ops lists every known operation in a stable order.
var Ops = []Op{
	OpJoin, OpAssignToGroup, OpRemoveMember, OpRemoveGroupScores,
	OpEntrySet, OpEntryGet, OpEntryTake, OpEntryIncrease,
}

// Call is one inbound request from an authenticated caller.
//
// Only the fields the operation uses are read: Group and Score for
// assign_to_group, Group for remove_group_scores, Value for set and
// increase, Account for get.
type Call struct {
	Seq     int64        `json:"seq,omitempty"`
	CallID  string       `json:"call_id,omitempty"`
	Op      Op           `json:"op"`
	Caller  ir.AccountID `json:"caller"`
	Group   ir.GroupID   `json:"group,omitempty"`
	Score   ir.Score     `json:"score,omitempty"`
	Account ir.AccountID `json:"account,omitempty"`
	Value   uint32       `json:"value,omitempty"`
}

func (c Call) String() string {
	switch c.Op {
	case OpAssignToGroup:
		return fmt.Sprintf("%s(caller=%d, group=%d, score=%d)", c.Op, c.Caller, c.Group, c.Score)
	case OpRemoveGroupScores:
		return fmt.Sprintf("%s(caller=%d, group=%d)", c.Op, c.Caller, c.Group)
	case OpEntrySet, OpEntryIncrease:
		return fmt.Sprintf("%s(caller=%d, value=%d)", c.Op, c.Caller, c.Value)
	case OpEntryGet:
		return fmt.Sprintf("%s(caller=%d, account=%d)", c.Op, c.Caller, c.Account)
	default:
		return fmt.Sprintf("%s(caller=%d)", c.Op, c.Caller)
	}
}

// Result is the outcome of an executed call.
type Result struct {
	Call  Call     `json:"call"`
	Event ir.Event `json:"event"`
}
