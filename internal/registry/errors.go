package registry

import "errors"

// Rejections. Messages match the runtime strings reported to callers.
var (
	// ErrAlreadyMember rejects Join for an existing member.
	ErrAlreadyMember = errors.New("already a member, can't join")

	// ErrNotAMember rejects AssignToGroup and RemoveMember for non-members.
	ErrNotAMember = errors.New("not a member, can't remove")

	// ErrNotInGroup rejects RemoveGroupScores when the caller is not
	// assigned to the group.
	ErrNotInGroup = errors.New("member isn't in the group, can't remove it")
)
