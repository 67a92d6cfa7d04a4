package service

import "errors"

// Sentinel causes surfaced by the service.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrDailySessionLimit = errors.New("daily session limit reached")
	ErrDailyPointsLimit  = errors.New("daily points limit reached")
	ErrQueueRejected     = errors.New("award queue rejected job")
)
