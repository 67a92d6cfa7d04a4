package model

import "time"

// AwardJob asks a worker to credit points for a claimed session and resolve
// the claim afterwards.
type AwardJob struct {
	SessionID   string
	PlayerID    string
	Points      int
	Reservation PointsReservation

	// Done receives exactly one outcome. It must be buffered so a worker never
	// blocks on a caller that already went away.
	Done chan AwardOutcome
}

// NewAwardJob builds a job with a ready Done channel.
func NewAwardJob(sessionID, playerID string, points int, r PointsReservation) AwardJob {
	return AwardJob{
		SessionID:   sessionID,
		PlayerID:    playerID,
		Points:      points,
		Reservation: r,
		Done:        make(chan AwardOutcome, 1),
	}
}

// AwardOutcome is the resolved result of an AwardJob.
type AwardOutcome struct {
	Err     error
	Latency time.Duration
}

// FinishResult is returned for an accepted finish.
type FinishResult struct {
	SavedPoints int
}
