// Package scheduler runs the periodic reclamation of sessions and quota buckets.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/okian/comet/pkg/logger"
	"github.com/okian/comet/pkg/metrics"
)

const (
	defaultInterval = time.Minute
	jobName         = "reclaim"
)

// Sweepable is a store that can evict stale entries.
type Sweepable interface {
	Sweep(ctx context.Context, now time.Time) int
	Len(ctx context.Context) int
}

// Sweeper periodically evicts expired sessions and stale quota buckets.
// It has its own lifecycle and never blocks request handling beyond the
// per-shard locks the stores take.
type Sweeper struct {
	sessions Sweepable
	buckets  Sweepable
	interval time.Duration
	clock    clockwork.Clock
	logger   logger.Logger

	mu     sync.Mutex
	sched  gocron.Scheduler
	cancel context.CancelFunc
}

// NewSweeper creates a sweeper over the session store and quota tracker.
func NewSweeper(sessions, buckets Sweepable, opts ...Option) *Sweeper {
	s := &Sweeper{
		sessions: sessions,
		buckets:  buckets,
		interval: defaultInterval,
		clock:    clockwork.NewRealClock(),
		logger:   logger.Get().Named("sweeper"),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured sweep interval.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// RunOnce performs a single sweep. A panic in either store is recovered,
// logged and counted, and reported as ErrSweepPanic.
func (s *Sweeper) RunOnce(ctx context.Context) (sessions, buckets int, err error) {
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSweepFailure()
			metrics.RecordErrorByType("sweep_panic", "high")
			err = fmt.Errorf("%w: %v", ErrSweepPanic, r)
			s.logger.Error(ctx, "sweep failed", logger.Error(err))
		}
	}()

	sessions = s.sessions.Sweep(ctx, start)
	buckets = s.buckets.Sweep(ctx, start)
	took := s.clock.Since(start)

	metrics.RecordSweep(sessions, buckets, float64(took.Microseconds())/1000)
	metrics.UpdateTrackedSessions(s.sessions.Len(ctx))
	metrics.UpdateQuotaBuckets(s.buckets.Len(ctx))

	if sessions > 0 || buckets > 0 {
		s.logger.Debug(ctx, "sweep completed",
			logger.Int("sessions", sessions),
			logger.Int("buckets", buckets),
			logger.Duration("took", took),
		)
	}
	return sessions, buckets, nil
}

// Start schedules RunOnce every interval, first run immediately.
// Sweeps stop when ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched != nil {
		return ErrAlreadyRunning
	}

	sched, err := gocron.NewScheduler(
		gocron.WithClock(s.clock),
		gocron.WithLogger(cronLogger{l: s.logger}),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if runCtx.Err() != nil {
				return
			}
			_, _, _ = s.RunOnce(runCtx)
		}),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}

	sched.Start()
	s.sched = sched
	s.cancel = cancel
	s.logger.Info(ctx, "sweeper started", logger.Duration("interval", s.interval))
	return nil
}

// Stop cancels any running sweep and shuts the scheduler down.
// Stopping a sweeper that is not running is a no-op.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched == nil {
		return nil
	}
	s.cancel()
	err := s.sched.Shutdown()
	s.sched = nil
	s.cancel = nil
	if err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
