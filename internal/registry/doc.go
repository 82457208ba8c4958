// Package registry keeps three correlated stores consistent:
//
//   - members: the set of joined accounts
//   - groups:  member -> the group it is assigned to
//   - scores:  (group, member) -> score
//
// Every mutating call validates and writes inside one kv transaction, so a
// rejected call leaves all three stores untouched. Each successful call
// appends exactly one event; rejected calls emit nothing. When the sink is
// the SQLite store the event is written in the same transaction as the
// state change.
//
// After any sequence of calls the stores satisfy:
//
//   - a score row (g, m) exists only if m is assigned to g, and m is a member
//   - a member has at most one score row
//   - a removed member has no group link and no score row
//   - a cleared group has no score rows
//
// RemoveGroupScores leaves the caller's group link in place, so a member can
// be assigned to a group that holds no score for it.
package registry
