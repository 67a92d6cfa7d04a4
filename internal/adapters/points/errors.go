package points

import (
	"errors"
	"fmt"
)

// Sentinel errors for the points service client.
var (
	ErrNotConfigured = errors.New("points client not configured")
	ErrRejected      = errors.New("points service rejected request")
)

// StatusError carries a non-2xx response from the points service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("points service returned %d: %s", e.StatusCode, e.Body)
}

// Is matches ErrRejected.
func (e *StatusError) Is(target error) bool {
	return target == ErrRejected
}
