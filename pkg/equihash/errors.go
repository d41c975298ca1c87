package equihash

import (
	"errors"
	"fmt"
)

// ErrorType classifies errors returned by the equihash package
type ErrorType int

const (
	// ErrorInvalidLength reports buffer sizes that are inconsistent with the
	// requested bit width. Raised before any hashing takes place.
	ErrorInvalidLength ErrorType = iota
	// ErrorInvalidInput reports values that cannot be encoded, such as an
	// index wider than the minimal encoding allows.
	ErrorInvalidInput
	// ErrorInvalidParams reports an unsupported (N, K) pair.
	ErrorInvalidParams
	// ErrorInternal reports a violated internal invariant. It is not
	// reachable with parameters accepted by NewParams.
	ErrorInternal
)

func (t ErrorType) String() string {
	switch t {
	case ErrorInvalidLength:
		return "invalid length"
	case ErrorInvalidInput:
		return "invalid input"
	case ErrorInvalidParams:
		return "invalid params"
	case ErrorInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error represents errors that can occur while encoding or verifying
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("equihash: %s: %s", e.Type, e.Message)
}

// Is matches errors of the same Type, so callers can compare against the
// package sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// Sentinels usable with errors.Is
var (
	ErrInvalidLength = &Error{Type: ErrorInvalidLength}
	ErrInvalidInput  = &Error{Type: ErrorInvalidInput}
	ErrInvalidParams = &Error{Type: ErrorInvalidParams}
	ErrInternal      = &Error{Type: ErrorInternal}
)

func newError(t ErrorType, msg string, ctx map[string]interface{}) error {
	return &Error{Type: t, Message: msg, Context: ctx}
}

// Reason names the structural check a solution failed
type Reason string

const (
	ReasonNoCollision      Reason = "no collision"
	ReasonIndicesOrder     Reason = "indices out of order"
	ReasonDuplicateIndices Reason = "duplicate indices"
	ReasonNonZeroResidual  Reason = "non-zero residual"
)

// SolutionError is the negative verification outcome for a malformed
// solution. It is an ordinary result, never a reason to stop processing.
type SolutionError struct {
	Reason Reason
	Round  int
	Pair   int
}

func (e *SolutionError) Error() string {
	if e.Round == 0 {
		return fmt.Sprintf("equihash: invalid solution: %s", e.Reason)
	}
	return fmt.Sprintf("equihash: invalid solution: %s (round %d, pair %d)", e.Reason, e.Round, e.Pair)
}

// IsMalformed reports whether err is a structural verification failure.
func IsMalformed(err error) bool {
	var se *SolutionError
	return errors.As(err, &se)
}
