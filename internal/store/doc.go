// Package store provides SQLite-backed durable storage for dmap.
//
// The store holds two regions:
//   - kv_entries: the ordered key-value map behind every typed storage map
//     (members, group assignments, scores, entries). Implements kv.Store.
//   - events: the append-only event log. Implements the registry event sink.
//
// # Critical Patterns
//
// Atomic Updates
//   - Update runs the caller's function against a kv.Overlay whose reads go
//     through the open SQL transaction, then applies every staged mutation
//     in that same transaction before COMMIT
//   - A failing function rolls the transaction back; nothing is written
//
// Ordered Keys
//   - kv_entries.key is a BLOB primary key (WITHOUT ROWID); SQLite compares
//     BLOBs with memcmp, so a prefix scan is the primary-key range
//     key >= prefix AND key < PrefixEnd(prefix)
//
// Logical Time
//   - Event ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - All event queries use ORDER BY seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Two drivers are supported: mattn/go-sqlite3 ("sqlite3", cgo) and
// modernc.org/sqlite ("sqlite", pure Go).
package store
