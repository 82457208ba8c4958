// Package kv defines the abstract key-value backend dmap storage is built on.
//
// A Store is an ordered byte-key map with three capabilities:
//   - Point reads: Get and Has, with ok=false for absent keys
//   - Ordered prefix scans: Scan visits exactly the keys sharing a prefix,
//     in ascending byte order, at a cost proportional to the matches
//   - Atomic updates: Update runs a function against a Txn whose staged
//     writes are committed together, or not at all if the function fails
//
// # Transactions
//
// A Txn is an overlay over the committed state. Reads through a Txn observe
// the Txn's own staged writes (read-your-writes); nothing is visible to other
// readers until Update commits. Update holds the store's exclusive lock for
// its whole duration, so transactions are strictly serial.
//
// # Backends
//
//   - Memory: in-process B-tree (github.com/google/btree)
//   - store.Store: SQLite (internal/store)
//
// Both backends are checked by the same conformance suite (kvtest).
package kv
