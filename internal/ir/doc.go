// Package ir provides the canonical value types shared by every dmap layer.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps ir the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Identifiers and scores are unsigned fixed-width integers, never floats
//   - Events carry their arguments by name so they can be replayed
//   - Event ordering uses the logical seq only, never wall-clock time
//   - Event IDs are content-addressed over canonical JSON (see hash.go)
package ir
