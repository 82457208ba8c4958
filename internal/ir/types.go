package ir

import (
	"fmt"
	"maps"
)

// AccountID identifies an authenticated caller and, once joined, a member.
type AccountID uint64

// GroupID identifies a group a member can be assigned to.
type GroupID uint32

// Score is the value a member holds within its current group.
type Score uint32

// ScoreEntry is one row of the score table.
type ScoreEntry struct {
	Group  GroupID   `json:"group"`
	Member AccountID `json:"member"`
	Score  Score     `json:"score"`
}

// EventKind names a state transition reported to the event sink.
type EventKind string

// Registry events.
const (
	KindNewMember        EventKind = "NewMember"
	KindMemberJoinsGroup EventKind = "MemberJoinsGroup"
	KindRemoveMember     EventKind = "RemoveMember"
	KindRemoveGroup      EventKind = "RemoveGroup"
)

// Entries events.
const (
	KindEntrySet       EventKind = "EntrySet"
	KindEntryGot       EventKind = "EntryGot"
	KindEntryTaken     EventKind = "EntryTaken"
	KindEntryIncreased EventKind = "EntryIncreased"
)

// Argument names used in Event.Args.
const (
	ArgMember  = "member"
	ArgGroup   = "group"
	ArgScore   = "score"
	ArgAccount = "account"
	ArgValue   = "value"
	ArgOld     = "old"
	ArgNew     = "new"
)

// Args holds the named arguments of an event.
type Args map[string]uint64

// Event is one record of the append-only event log.
//
// Kind and Args are the payload: they carry exactly the arguments of the call
// that produced the event. Seq, ID and CallID are stamped by the sink.
type Event struct {
	Seq    int64     `json:"seq"`
	ID     string    `json:"id,omitempty"`
	CallID string    `json:"call_id,omitempty"`
	Kind   EventKind `json:"kind"`
	Args   Args      `json:"args"`
}

// Payload returns the event without its log metadata.
func (e Event) Payload() Event {
	return Event{Kind: e.Kind, Args: maps.Clone(e.Args)}
}

// SamePayload reports whether two events carry the same kind and arguments.
func (e Event) SamePayload(other Event) bool {
	return e.Kind == other.Kind && maps.Equal(e.Args, other.Args)
}

// String renders the payload in call notation, e.g. MemberJoinsGroup(1, 3, 5).
func (e Event) String() string {
	switch e.Kind {
	case KindNewMember, KindRemoveMember:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Args[ArgMember])
	case KindMemberJoinsGroup:
		return fmt.Sprintf("%s(%d, %d, %d)", e.Kind, e.Args[ArgMember], e.Args[ArgGroup], e.Args[ArgScore])
	case KindRemoveGroup:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Args[ArgGroup])
	case KindEntrySet, KindEntryGot, KindEntryTaken:
		return fmt.Sprintf("%s(%d, %d)", e.Kind, e.Args[ArgAccount], e.Args[ArgValue])
	case KindEntryIncreased:
		return fmt.Sprintf("%s(%d, %d, %d)", e.Kind, e.Args[ArgAccount], e.Args[ArgOld], e.Args[ArgNew])
	default:
		return fmt.Sprintf("%s%v", e.Kind, map[string]uint64(e.Args))
	}
}

// Member returns the member argument.
func (e Event) Member() AccountID { return AccountID(e.Args[ArgMember]) }

// Group returns the group argument.
func (e Event) Group() GroupID { return GroupID(e.Args[ArgGroup]) }

// Score returns the score argument.
func (e Event) Score() Score { return Score(e.Args[ArgScore]) }

// Value returns the value argument of an entries event.
func (e Event) Value() uint32 { return uint32(e.Args[ArgValue]) }

// NewMember is emitted by a successful join.
func NewMember(member AccountID) Event {
	return Event{Kind: KindNewMember, Args: Args{ArgMember: uint64(member)}}
}

// MemberJoinsGroup is emitted by a successful group assignment.
func MemberJoinsGroup(member AccountID, group GroupID, score Score) Event {
	return Event{Kind: KindMemberJoinsGroup, Args: Args{
		ArgMember: uint64(member),
		ArgGroup:  uint64(group),
		ArgScore:  uint64(score),
	}}
}

// RemoveMember is emitted by a successful member removal.
func RemoveMember(member AccountID) Event {
	return Event{Kind: KindRemoveMember, Args: Args{ArgMember: uint64(member)}}
}

// RemoveGroup is emitted by a successful group score clear.
func RemoveGroup(group GroupID) Event {
	return Event{Kind: KindRemoveGroup, Args: Args{ArgGroup: uint64(group)}}
}

// EntrySet is emitted when an account stores a value.
func EntrySet(account AccountID, value uint32) Event {
	return Event{Kind: KindEntrySet, Args: Args{ArgAccount: uint64(account), ArgValue: uint64(value)}}
}

// EntryGot is emitted when a caller reads a stored value.
func EntryGot(caller AccountID, value uint32) Event {
	return Event{Kind: KindEntryGot, Args: Args{ArgAccount: uint64(caller), ArgValue: uint64(value)}}
}

// EntryTaken is emitted when an account removes its stored value.
func EntryTaken(account AccountID, value uint32) Event {
	return Event{Kind: KindEntryTaken, Args: Args{ArgAccount: uint64(account), ArgValue: uint64(value)}}
}

// EntryIncreased is emitted when an account increases its stored value.
func EntryIncreased(account AccountID, oldValue, newValue uint32) Event {
	return Event{Kind: KindEntryIncreased, Args: Args{
		ArgAccount: uint64(account),
		ArgOld:     uint64(oldValue),
		ArgNew:     uint64(newValue),
	}}
}
