package worker

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/comet/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithGameID sets the game the pool awards points for.
func WithGameID(id string) Option {
	return func(p *Pool) {
		p.gameID = id
	}
}

// WithAwardTimeout bounds every external award call.
func WithAwardTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.awardTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the pool and its workers.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the clock used for latency measurement.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pool) {
		if c != nil {
			p.clock = c
		}
	}
}
