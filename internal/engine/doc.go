// Package engine executes registry and entries calls one at a time.
//
// ARCHITECTURE:
//
// Single-Writer Call Loop:
// Callers Submit calls from any goroutine. Run dequeues them in FIFO order
// and executes each to completion before starting the next, so no two
// mutating calls ever overlap. Exec runs a call synchronously under the
// same lock for one-shot use (the CLI) where no Run loop is started.
//
// Call Processing Flow:
//  1. Submit stamps nothing and enqueues the call with a reply channel
//  2. Run dequeues the call
//  3. execute stamps a seq from the Clock and a call id, then dispatches
//  4. The registry or entries module validates, commits and emits its event
//  5. The Result is sent back to the waiting Submit
//
// A failed call is logged and the loop continues with the next one: the
// failure is deterministic and retrying would not change it.
//
// Logical Clock:
// Every executed call gets a strictly increasing seq from Clock.Next(), and
// the event of a successful call is logged under that seq. Rejected calls
// consume a seq without logging anything, so the event log has gaps.
// Wall-clock time is never used for ordering.
package engine
