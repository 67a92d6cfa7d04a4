// Package model contains domain models passed between layers.
package model

import (
	"time"
)

// State is the lifecycle state of a play session.
type State int

// Session states. SUBMITTED and EXPIRED are terminal.
const (
	StateOpen State = iota
	StateClaimed
	StateSubmitted
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClaimed:
		return "CLAIMED"
	case StateSubmitted:
		return "SUBMITTED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Session is one gameplay attempt whose score may be reported once.
type Session struct {
	ID        string
	PlayerID  string
	StartedAt time.Time
	State     State
}

// Expired reports whether the session outlived ttl at now.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.StartedAt) > ttl
}

// PointsReservation is a pending claim against a player's daily points quota.
type PointsReservation struct {
	PlayerID string
	DayKey   string
	Points   int
}
