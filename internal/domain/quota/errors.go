package quota

import "errors"

// Sentinel kinds for quota errors.
var (
	ErrUnknownBucket  = errors.New("quota bucket not found")
	ErrBadReservation = errors.New("reservation exceeds pending points")
	ErrNegativePoints = errors.New("points must not be negative")
	ErrNoSessionStart = errors.New("no session start to release")
)
