package service

import (
	"time"

	"github.com/okian/comet/internal/domain/clock"
	"github.com/okian/comet/internal/domain/quota"
	"github.com/okian/comet/internal/domain/session"
	"github.com/okian/comet/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLimits sets the session and quota limits.
func WithLimits(l Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

// WithClock sets the clock every time-dependent decision is made with.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSessionStore injects the session store. Its TTL should match the limits.
func WithSessionStore(st session.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.sessions = st
		}
	}
}

// WithQuotaTracker injects the quota tracker.
func WithQuotaTracker(t quota.Tracker) Option {
	return func(s *Service) {
		if t != nil {
			s.quotas = t
		}
	}
}

// WithAwarder sets the points service client.
func WithAwarder(a Awarder) Option {
	return func(s *Service) {
		if a != nil {
			s.awarder = a
		}
	}
}

// WithGameID sets the game points are awarded for.
func WithGameID(id string) Option {
	return func(s *Service) {
		s.gameID = id
	}
}

// WithWorkerCount sets the number of award workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the award queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithAwardTimeout bounds each external award call.
func WithAwardTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.awardTimeout = d
		}
	}
}

// WithSweepInterval sets the time between reclamation sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithMaxTrackedSessions bounds the default session store.
func WithMaxTrackedSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTracked = n
		}
	}
}

// WithShardCount sets the shard count of the default stores.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithStatsRetention sets how long idle quota buckets are kept by the default tracker.
func WithStatsRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.statsRetention = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
