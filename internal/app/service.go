// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/comet/internal/adapters/mq/queue"
	"github.com/okian/comet/internal/adapters/mq/worker"
	"github.com/okian/comet/internal/adapters/scheduler"
	"github.com/okian/comet/internal/domain/clock"
	"github.com/okian/comet/internal/domain/errs"
	"github.com/okian/comet/internal/domain/model"
	"github.com/okian/comet/internal/domain/quota"
	"github.com/okian/comet/internal/domain/session"
	"github.com/okian/comet/internal/domain/validation"
	"github.com/okian/comet/pkg/logger"
	"github.com/okian/comet/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultWorkerCount    = 16
	defaultQueueSize      = 1024
	defaultAwardTimeout   = 5 * time.Second
	defaultSweepInterval  = time.Minute
	defaultMaxTracked     = 100_000
	defaultShardCount     = 8
	defaultStatsRetention = 48 * time.Hour
)

// Awarder credits points with the external service.
type Awarder = worker.Awarder

// Limits are the anti-abuse bounds applied to every player.
type Limits struct {
	SessionTTL        time.Duration
	MinSession        time.Duration
	MaxScore          int
	MaxSessionsPerDay int
	MaxPointsPerDay   int
}

// DefaultLimits returns the limits the game ships with.
func DefaultLimits() Limits {
	return Limits{
		SessionTTL:        20 * time.Minute,
		MinSession:        8 * time.Second,
		MaxScore:          250,
		MaxSessionsPerDay: 30,
		MaxPointsPerDay:   3000,
	}
}

func (l Limits) validation() validation.Limits {
	return validation.Limits{MaxScore: l.MaxScore, MinSession: l.MinSession, SessionTTL: l.SessionTTL}
}

// Service runs the session lifecycle: start, finish, award and reclamation.
type Service struct {
	mu sync.RWMutex

	// Core components
	sessions session.Store
	quotas   quota.Tracker
	awarder  Awarder
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	sweeper  *scheduler.Sweeper
	clock    clock.Clock

	// Configuration
	limits         Limits
	gameID         string
	workerCount    int
	queueSize      int
	awardTimeout   time.Duration
	sweepInterval  time.Duration
	maxTracked     int
	shardCount     int
	statsRetention time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service. Stores not injected are created in memory.
func New(opts ...Option) *Service {
	s := &Service{
		limits:         DefaultLimits(),
		workerCount:    defaultWorkerCount,
		queueSize:      defaultQueueSize,
		awardTimeout:   defaultAwardTimeout,
		sweepInterval:  defaultSweepInterval,
		maxTracked:     defaultMaxTracked,
		shardCount:     defaultShardCount,
		statsRetention: defaultStatsRetention,
		clock:          clock.Real(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.sessions == nil {
		s.sessions = session.NewInMemoryStore(
			session.WithTTL(s.limits.SessionTTL),
			session.WithMaxSessions(s.maxTracked),
			session.WithShardCount(s.shardCount),
		)
	}
	if s.quotas == nil {
		s.quotas = quota.NewInMemoryTracker(
			quota.WithRetention(s.statsRetention),
			quota.WithShardCount(s.shardCount),
		)
	}
	s.sweeper = scheduler.NewSweeper(s.sessions, s.quotas,
		scheduler.WithInterval(s.sweepInterval),
		scheduler.WithClock(s.clock),
		scheduler.WithLogger(s.logger.Named("sweeper")),
	)
	return s
}

// Start launches the award workers and the sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting session service...")

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.awarder, s,
		worker.WithGameID(s.gameID),
		worker.WithAwardTimeout(s.awardTimeout),
		worker.WithClock(s.clock),
		worker.WithLogger(s.logger.Named("award")),
	)
	// Background work is bounded by Stop, not by the caller's context.
	bg := context.WithoutCancel(ctx)
	s.pool.Start(bg)

	if err := s.sweeper.Start(bg); err != nil {
		_ = s.pool.Shutdown(ctx)
		return errs.Wrap("service.Start", errs.ErrInternal, err)
	}

	if !s.pointsConfigured() {
		s.logger.Warn(ctx, "points service is not configured; finishes will be refused")
	}

	s.started = true
	s.logger.Info(ctx, "session service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("sweepInterval", s.sweeper.Interval()),
	)
	return nil
}

// Stop halts the sweeper, then drains the award queue until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping session service...")

	var errList []error
	if err := s.sweeper.Stop(); err != nil {
		errList = append(errList, err)
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		errList = append(errList, err)
	}

	s.started = false
	s.logger.Info(ctx, "session service stopped")
	return errors.Join(errList...)
}

// StartSession admits and creates a new session for playerID.
func (s *Service) StartSession(ctx context.Context, playerID string) (model.Session, error) {
	const op = "service.StartSession"

	id, err := validation.PlayerID(playerID)
	if err != nil {
		metrics.RecordSessionRejected("invalid")
		return model.Session{}, errs.Wrap(op, errs.ErrValidation, err)
	}

	// Refuse before counting the start against the player's quota.
	if s.sessions.Full(ctx) {
		metrics.RecordSessionRejected("capacity")
		return model.Session{}, errs.Wrap(op, errs.ErrCapacity, session.ErrCapacity)
	}

	now := s.clock.Now()
	if !s.quotas.AdmitSessionStart(ctx, id, now, s.limits.MaxSessionsPerDay) {
		metrics.RecordSessionRejected("quota")
		return model.Session{}, errs.Wrap(op, errs.ErrQuotaExceeded, ErrDailySessionLimit)
	}

	sess, err := s.sessions.Create(ctx, id, now)
	if err != nil {
		// The start was counted but no session exists; give it back.
		if rerr := s.quotas.ReleaseSessionStart(ctx, id, now); rerr != nil {
			s.logger.Warn(ctx, "session start release failed", logger.String("playerId", id), logger.Error(rerr))
		}
		if errors.Is(err, session.ErrCapacity) {
			metrics.RecordSessionRejected("capacity")
			return model.Session{}, errs.Wrap(op, errs.ErrCapacity, err)
		}
		metrics.RecordSessionRejected("internal")
		s.logger.Error(ctx, "session create failed", logger.String("playerId", id), logger.Error(err))
		return model.Session{}, errs.Wrap(op, errs.ErrInternal, err)
	}

	metrics.RecordSessionStarted()
	metrics.UpdateTrackedSessions(s.sessions.Len(ctx))
	s.logger.Debug(ctx, "session started",
		logger.String("sessionId", sess.ID),
		logger.String("playerId", sess.PlayerID),
	)
	return sess, nil
}

// FinishSession validates a finish, claims the session, reserves the points
// and waits for the award worker to resolve the claim.
//
// If ctx ends first the call returns, but the worker still commits or
// releases the claim.
func (s *Service) FinishSession(ctx context.Context, in validation.FinishInput) (model.FinishResult, error) {
	const op = "service.FinishSession"

	if !s.pointsConfigured() {
		metrics.RecordFinish("not_configured")
		return model.FinishResult{}, errs.New(op, errs.ErrNotConfigured)
	}

	req, err := validation.Finish(in, s.limits.validation())
	if err != nil {
		metrics.RecordFinish("invalid")
		return model.FinishResult{}, errs.Wrap(op, errs.ErrValidation, err)
	}

	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()
	if !started {
		return model.FinishResult{}, errs.Wrap(op, errs.ErrInternal, ErrNotStarted)
	}

	now := s.clock.Now()
	sess, err := s.sessions.Claim(ctx, req.SessionID, req.PlayerID, now)
	if err != nil {
		metrics.RecordFinish(claimOutcome(err))
		return model.FinishResult{}, errs.Wrap(op, errs.ErrSessionState, err)
	}

	reservation, ok := s.quotas.AdmitPoints(ctx, sess.PlayerID, now, req.Score, s.limits.MaxPointsPerDay)
	if !ok {
		s.release(ctx, sess.ID)
		metrics.RecordFinish("quota")
		return model.FinishResult{}, errs.Wrap(op, errs.ErrQuotaExceeded, ErrDailyPointsLimit)
	}

	job := model.NewAwardJob(sess.ID, sess.PlayerID, req.Score, reservation)
	if err := q.Enqueue(ctx, job); err != nil {
		s.release(ctx, sess.ID)
		s.cancelPoints(ctx, reservation)
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			metrics.RecordFinish("capacity")
			return model.FinishResult{}, errs.Wrap(op, errs.ErrCapacity, errors.Join(ErrQueueRejected, err))
		}
		metrics.RecordFinish("cancelled")
		return model.FinishResult{}, errs.Wrap(op, errs.ErrInternal, err)
	}

	select {
	case out := <-job.Done:
		if out.Err != nil {
			return model.FinishResult{}, out.Err
		}
		return model.FinishResult{SavedPoints: req.Score}, nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "finish abandoned by caller; award continues",
			logger.String("sessionId", sess.ID),
		)
		return model.FinishResult{}, errs.Wrap(op, errs.ErrInternal, ctx.Err())
	}
}

// Resolve settles a claimed session after its award call. It implements
// worker.Resolver and runs on the award worker.
func (s *Service) Resolve(ctx context.Context, j model.AwardJob, awardErr error) error { //nolint:gocritic // hugeParam: matches worker.Resolver
	const op = "service.Resolve"
	now := s.clock.Now()

	if awardErr != nil {
		s.release(ctx, j.SessionID)
		s.cancelPoints(ctx, j.Reservation)
		metrics.RecordFinish("upstream_failure")
		metrics.RecordErrorByType("upstream_failure", "high")
		return errs.Wrap(op, errs.ErrUpstream, awardErr)
	}

	if err := s.sessions.Commit(ctx, j.SessionID); err != nil {
		// The points were recorded; a swept session cannot be replayed anyway.
		s.logger.Warn(ctx, "commit after award failed",
			logger.String("sessionId", j.SessionID),
			logger.Error(err),
		)
	}
	if err := s.quotas.CommitPoints(ctx, j.Reservation, now); err != nil {
		s.logger.Error(ctx, "points commit failed",
			logger.String("playerId", j.PlayerID),
			logger.Int("points", j.Points),
			logger.Error(err),
		)
	}

	metrics.RecordFinish("submitted")
	metrics.RecordPointsAwarded(j.Points)
	s.logger.Info(ctx, "points awarded",
		logger.String("sessionId", j.SessionID),
		logger.String("playerId", j.PlayerID),
		logger.Int("points", j.Points),
	)
	return nil
}

// Reclaim runs one sweep immediately and reports what was evicted.
func (s *Service) Reclaim(ctx context.Context) (sessions, buckets int, err error) {
	return s.sweeper.RunOnce(ctx)
}

func (s *Service) release(ctx context.Context, id string) {
	if err := s.sessions.Release(ctx, id); err != nil {
		s.logger.Warn(ctx, "session release failed", logger.String("sessionId", id), logger.Error(err))
	}
}

func (s *Service) cancelPoints(ctx context.Context, r model.PointsReservation) {
	if err := s.quotas.CancelPoints(ctx, r, s.clock.Now()); err != nil {
		s.logger.Warn(ctx, "points reservation cancel failed", logger.String("playerId", r.PlayerID), logger.Error(err))
	}
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, session.ErrAlreadySubmitted):
		return "replay"
	case errors.Is(err, session.ErrExpired):
		return "expired"
	case errors.Is(err, session.ErrPlayerMismatch):
		return "player_mismatch"
	default:
		return "not_found"
	}
}

// PointsConfigured reports whether finishes can be awarded at all.
func (s *Service) PointsConfigured() bool {
	return s.pointsConfigured()
}

func (s *Service) pointsConfigured() bool {
	if s.gameID == "" || s.awarder == nil {
		return false
	}
	if c, ok := s.awarder.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}

// Limits returns the configured limits.
func (s *Service) Limits() Limits {
	return s.limits
}

// Session returns the session with its effective state.
func (s *Service) Session(ctx context.Context, id string) (model.Session, error) {
	sess, err := s.sessions.Get(ctx, id, s.clock.Now())
	if err != nil {
		return model.Session{}, errs.Wrap("service.Session", errs.ErrSessionState, err)
	}
	return sess, nil
}

// Bucket returns the quota counters of playerID for the current UTC day.
func (s *Service) Bucket(ctx context.Context, playerID string) (quota.Bucket, bool) {
	return s.quotas.Get(ctx, playerID, clock.DayKey(s.clock.Now()))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	tracked := s.sessions.Len(ctx)
	buckets := s.quotas.Len(ctx)
	stats := map[string]interface{}{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"trackedSessions":   tracked,
		"quotaBuckets":      buckets,
		"pointsConfigured":  s.pointsConfigured(),
		"sessionTtlMs":      s.limits.SessionTTL.Milliseconds(),
		"minSessionMs":      s.limits.MinSession.Milliseconds(),
		"maxScore":          s.limits.MaxScore,
		"maxSessionsPerDay": s.limits.MaxSessionsPerDay,
		"maxPointsPerDay":   s.limits.MaxPointsPerDay,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
	}

	metrics.UpdateTrackedSessions(tracked)
	metrics.UpdateQuotaBuckets(buckets)
	return stats
}
