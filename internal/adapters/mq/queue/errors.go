package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("award queue full")
	ErrClosed = errors.New("award queue closed")
)
