package ir

import (
	"errors"
	"fmt"
)

// CallError reports a rejected call.
//
// Err is one of the domain sentinel errors; errors.Is matches it through
// the wrapper.
type CallError struct {
	// Op names the rejected operation, e.g. "join".
	Op string

	// Caller is the authenticated account that made the call.
	Caller AccountID

	// Err is the precondition that failed.
	Err error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("%s (caller=%d): %v", e.Op, e.Caller, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *CallError) Unwrap() error {
	return e.Err
}

// IsCallError reports whether err is a rejected call rather than an
// infrastructure failure.
func IsCallError(err error) bool {
	var ce *CallError
	return errors.As(err, &ce)
}
