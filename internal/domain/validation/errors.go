package validation

import (
	"errors"
	"fmt"
)

// ErrInvalid is matched by every FieldError.
var ErrInvalid = errors.New("invalid input")

// FieldError reports which request field failed and why.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalid) match any FieldError.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalid
}

func fieldErr(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
