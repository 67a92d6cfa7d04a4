package scheduler

import "errors"

// Sentinel errors for the sweeper.
var (
	ErrAlreadyRunning = errors.New("sweeper already running")
	ErrSweepPanic     = errors.New("sweep panicked")
)
