// Package errs defines the error kinds shared across the service and helpers
// to attach an operation name to them.
//
// A wrapped error matches both its kind and its cause with errors.Is, so the
// HTTP layer can switch on kinds while tests still assert precise causes.
package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Every error crossing a package boundary carries one of these.
var (
	ErrValidation    = errors.New("validation failed")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrSessionState  = errors.New("invalid session state")
	ErrUpstream      = errors.New("points service failure")
	ErrCapacity      = errors.New("capacity exhausted")
	ErrNotConfigured = errors.New("not configured")
	ErrInternal      = errors.New("internal error")
)

// Error is an operation-scoped error with a kind and an optional cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Kind == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both kind and cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New returns an error of the given kind for op.
func New(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap attaches op and kind to err. A nil err yields nil.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the first known kind matched by err, or ErrInternal.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrQuotaExceeded, ErrSessionState, ErrUpstream, ErrCapacity, ErrNotConfigured} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}
