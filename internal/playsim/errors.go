package playsim

import "errors"

// Sentinel errors for simulation runs.
var (
	ErrUnhealthy      = errors.New("service is not healthy")
	ErrNotConfigured  = errors.New("service has no points configuration")
	ErrReplayAccepted = errors.New("a finished session was accepted twice")
	ErrBadConfig      = errors.New("invalid simulation config")
)
