// Package playsim plays sessions against a running Comet Escape server and
// checks that every session can be finished only once.
package playsim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL           string        // Base URL of the service
	Players           int           // Number of simulated players
	SessionsPerPlayer int           // Sessions each player plays
	Workers           int           // Number of concurrent players in flight
	Timeout           time.Duration // HTTP request timeout
	MaxScore          int           // Upper bound for generated scores
	MinDuration       time.Duration // Shortest reported run
	Verbose           bool          // Log every session outcome
}

// Stats holds simulation statistics.
type Stats struct {
	SessionsStarted  int64
	StartsRejected   int64
	Finished         int64
	FinishesRejected int64
	ReplaysRefused   int64
	ReplaysAccepted  int64
	PointsSaved      int64
	Failed           int64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

type startResponse struct {
	SessionID string `json:"sessionId"`
	StartedAt int64  `json:"startedAt"`
}

type finishRequest struct {
	SessionID  string `json:"sessionId"`
	PlayerID   string `json:"playerId"`
	Score      int    `json:"score"`
	DurationMs int64  `json:"durationMs"`
}

type finishResponse struct {
	OK          bool `json:"ok"`
	SavedPoints int  `json:"savedPoints"`
}

type healthResponse struct {
	OK               bool `json:"ok"`
	PointsConfigured bool `json:"pointsConfigured"`
}
