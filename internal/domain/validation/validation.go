// Package validation holds the pure checks applied to session requests before
// any store is touched.
package validation

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Player id length bounds, in characters.
const (
	MinPlayerIDLen = 3
	MaxPlayerIDLen = 128
)

// Limits are the configured bounds a finish is checked against.
type Limits struct {
	MaxScore   int
	MinSession time.Duration
	SessionTTL time.Duration
}

// FinishInput is a finish request as decoded from the wire.
// Numbers stay float64 so fractional or non-finite values can be rejected.
type FinishInput struct {
	SessionID  string
	PlayerID   string
	Score      float64
	DurationMs float64
}

// FinishRequest is a validated, normalized finish request.
type FinishRequest struct {
	SessionID string
	PlayerID  string
	Score     int
	Duration  time.Duration
}

// PlayerID trims raw and checks its length.
func PlayerID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fieldErr("playerId", "is required")
	}
	if n := utf8.RuneCountInString(id); n < MinPlayerIDLen || n > MaxPlayerIDLen {
		return "", fieldErr("playerId", "must be between 3 and 128 characters")
	}
	return id, nil
}

// SessionID trims raw and checks it is present.
func SessionID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fieldErr("sessionId", "is required")
	}
	return id, nil
}

// Score checks v is a whole number in [0, maxScore].
func Score(v float64, maxScore int) (int, error) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, fieldErr("score", "must be a finite number")
	case v != math.Trunc(v):
		return 0, fieldErr("score", "must be an integer")
	case v < 0:
		return 0, fieldErr("score", "must not be negative")
	case v > float64(maxScore):
		return 0, fieldErr("score", "exceeds per-session limit")
	}
	return int(v), nil
}

// Duration checks ms is finite and within [minSession, ttl].
func Duration(ms float64, minSession, ttl time.Duration) (time.Duration, error) {
	switch {
	case math.IsNaN(ms) || math.IsInf(ms, 0):
		return 0, fieldErr("durationMs", "must be a finite number")
	case ms < float64(minSession.Milliseconds()):
		return 0, fieldErr("durationMs", "session too short")
	case ms > float64(ttl.Milliseconds()):
		return 0, fieldErr("durationMs", "session longer than its lifetime")
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// Finish runs every check on in and returns the normalized request.
// The first failing check wins.
func Finish(in FinishInput, l Limits) (FinishRequest, error) {
	sessionID, err := SessionID(in.SessionID)
	if err != nil {
		return FinishRequest{}, err
	}
	playerID, err := PlayerID(in.PlayerID)
	if err != nil {
		return FinishRequest{}, err
	}
	score, err := Score(in.Score, l.MaxScore)
	if err != nil {
		return FinishRequest{}, err
	}
	d, err := Duration(in.DurationMs, l.MinSession, l.SessionTTL)
	if err != nil {
		return FinishRequest{}, err
	}
	return FinishRequest{SessionID: sessionID, PlayerID: playerID, Score: score, Duration: d}, nil
}
