// Package worker runs award jobs against the points service and resolves the
// session claim behind each one.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/comet/internal/adapters/mq/queue"
	"github.com/okian/comet/internal/domain/model"
	"github.com/okian/comet/pkg/logger"
	"github.com/okian/comet/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	defaultAwardTimeout     = 5 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.AwardJob

// Awarder credits points with the external service.
type Awarder interface {
	Award(ctx context.Context, gameID, playerID string, points int) error
}

// Resolver settles a claimed session once the award call returned.
// awardErr is nil when the points were recorded. The returned error is what
// the waiting caller sees.
type Resolver interface {
	Resolve(ctx context.Context, j Job, awardErr error) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan Job
}

type worker struct {
	name string
	pool *Pool
	done chan struct{}
	log  logger.Logger
}

// run drains the queue until it is closed.
func (w *worker) run(ctx context.Context) {
	defer close(w.done)

	for j := range w.pool.queue.Dequeue() {
		w.process(ctx, j)
	}
}

// process runs one job. Shutdown does not cancel an award in flight; the
// award timeout still bounds it.
func (w *worker) process(ctx context.Context, j Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	p := w.pool
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.awardTimeout)
	defer cancel()

	start := p.clock.Now()
	awardErr := w.award(actx, j)
	latency := p.clock.Since(start)
	metrics.RecordAwardLatency(float64(latency.Milliseconds()))

	if awardErr != nil {
		w.log.Warn(ctx, "award failed",
			logger.String("sessionId", j.SessionID),
			logger.String("playerId", j.PlayerID),
			logger.Duration("latency", latency),
			logger.Error(awardErr),
		)
	}

	err := p.resolver.Resolve(context.WithoutCancel(ctx), j, awardErr)
	j.Done <- model.AwardOutcome{Err: err, Latency: latency}
}

// award calls the awarder and turns a panic into an error so the claim is
// still resolved.
func (w *worker) award(ctx context.Context, j Job) (err error) { //nolint:gocritic // hugeParam: see process
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByType("award_panic", "high")
			err = fmt.Errorf("award panicked: %v", r)
		}
	}()
	return w.pool.awarder.Award(ctx, w.pool.gameID, j.PlayerID, j.Points)
}

// Pool manages the award workers.
type Pool struct {
	workers      []*worker
	queue        Queue
	awarder      Awarder
	resolver     Resolver
	gameID       string
	awardTimeout time.Duration
	clock        clockwork.Clock
	logger       logger.Logger
	started      atomic.Bool
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, q Queue, awarder Awarder, resolver Resolver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:      make([]*worker, workerCount),
		queue:        q,
		awarder:      awarder,
		resolver:     resolver,
		awardTimeout: defaultAwardTimeout,
		clock:        clockwork.NewRealClock(),
		logger:       logger.Get().Named("award-pool"),
	}

	for _, opt := range opts {
		opt(p)
	}

	for i := range p.workers {
		name := "award-worker-" + strconv.Itoa(i)
		p.workers[i] = &worker{
			name: name,
			pool: p,
			done: make(chan struct{}),
			log:  p.logger.With(logger.String("worker", name)),
		}
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.run(ctx)
	}
	metrics.UpdateAwardWorkers(len(p.workers))
	p.logger.Info(ctx, "award workers started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	if !p.started.Load() {
		return nil
	}

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", ctx.Err())
		}
	}
	metrics.UpdateAwardWorkers(0)
	return nil
}

var _ Queue = (*queue.InMemoryQueue)(nil)
