package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/dmap/internal/entries"
	"github.com/roach88/dmap/internal/registry"
)

// ErrStopped is returned by Submit after Stop or once Run has returned.
var ErrStopped = errors.New("engine stopped")

// UnknownOpError reports a call naming an operation the engine does not know.
type UnknownOpError struct {
	Op Op
}

func (e *UnknownOpError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Op)
}

// IsUnknownOp reports whether err is an UnknownOpError.
// Uses errors.As to handle wrapped errors.
func IsUnknownOp(err error) bool {
	var ue *UnknownOpError
	return errors.As(err, &ue)
}

// Stable error codes reported by the CLI and HTTP transports.
const (
	CodeAlreadyMember      = "ALREADY_MEMBER"
	CodeNotAMember         = "NOT_A_MEMBER"
	CodeNotInGroup         = "NOT_IN_GROUP"
	CodeNoValueStored      = "NO_VALUE_STORED"
	CodeArithmeticOverflow = "ARITHMETIC_OVERFLOW"
	CodeUnknownOp          = "UNKNOWN_OP"
	CodeStopped            = "ENGINE_STOPPED"
	CodeInternal           = "INTERNAL"
)

// ErrorCode classifies err for transports.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, registry.ErrAlreadyMember):
		return CodeAlreadyMember
	case errors.Is(err, registry.ErrNotAMember):
		return CodeNotAMember
	case errors.Is(err, registry.ErrNotInGroup):
		return CodeNotInGroup
	case errors.Is(err, entries.ErrNoValueStored):
		return CodeNoValueStored
	case errors.Is(err, entries.ErrArithmeticOverflow):
		return CodeArithmeticOverflow
	case IsUnknownOp(err):
		return CodeUnknownOp
	case errors.Is(err, ErrStopped):
		return CodeStopped
	default:
		return CodeInternal
	}
}
