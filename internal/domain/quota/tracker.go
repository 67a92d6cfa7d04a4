// Package quota tracks per-player, per-day session and points counters.
//
// Buckets are keyed by (playerId, UTC day). A new day yields a new key, so
// counters are never reset; stale buckets are dropped by Sweep.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/comet/internal/domain/clock"
	"github.com/okian/comet/internal/domain/model"
)

// Default tracker configuration constants.
const (
	defaultRetention  = 48 * time.Hour
	defaultShardCount = 8
)

// Bucket is a snapshot of one player's counters for one day.
type Bucket struct {
	PlayerID      string
	DayKey        string
	SessionCount  int
	PointsAccrued int
	PointsPending int
	LastTouchedAt time.Time
}

// Tracker provides quota admission and accounting.
type Tracker interface {
	// AdmitSessionStart counts a session start unless the day's limit is hit.
	AdmitSessionStart(ctx context.Context, playerID string, now time.Time, maxSessionsPerDay int) bool

	// ReleaseSessionStart returns a start admitted at now whose session was
	// never created.
	ReleaseSessionStart(ctx context.Context, playerID string, now time.Time) error

	// AdmitPoints reserves score points unless accrued plus pending would
	// exceed maxPointsPerDay.
	AdmitPoints(ctx context.Context, playerID string, now time.Time, score, maxPointsPerDay int) (model.PointsReservation, bool)

	// CommitPoints turns a reservation into accrued points.
	CommitPoints(ctx context.Context, r model.PointsReservation, now time.Time) error

	// CancelPoints drops a reservation.
	CancelPoints(ctx context.Context, r model.PointsReservation, now time.Time) error

	// Sweep removes buckets untouched for longer than the retention window.
	Sweep(ctx context.Context, now time.Time) int

	Get(ctx context.Context, playerID, dayKey string) (Bucket, bool)
	Len(ctx context.Context) int
}

type bucketKey struct {
	playerID string
	dayKey   string
}

type shard struct {
	mu      sync.Mutex
	buckets map[bucketKey]*Bucket
}

// InMemoryTracker is a sharded, mutex-guarded Tracker.
type InMemoryTracker struct {
	shards     []*shard
	shardCount int
	retention  time.Duration
}

// NewInMemoryTracker creates a tracker with configuration options.
func NewInMemoryTracker(opts ...Option) *InMemoryTracker {
	t := &InMemoryTracker{
		retention:  defaultRetention,
		shardCount: defaultShardCount,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.shards = make([]*shard, t.shardCount)
	for i := range t.shards {
		t.shards[i] = &shard{buckets: make(map[bucketKey]*Bucket)}
	}
	return t
}

func (t *InMemoryTracker) shardFor(k bucketKey) *shard {
	h := xxhash.New()
	_, _ = h.WriteString(k.playerID)
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(k.dayKey)
	return t.shards[h.Sum64()%uint64(len(t.shards))]
}

// bucket returns the bucket for k, creating it lazily. Caller holds sh.mu.
func (sh *shard) bucket(k bucketKey) *Bucket {
	b, ok := sh.buckets[k]
	if !ok {
		b = &Bucket{PlayerID: k.playerID, DayKey: k.dayKey}
		sh.buckets[k] = b
	}
	return b
}

// AdmitSessionStart checks and increments under the bucket's shard lock.
func (t *InMemoryTracker) AdmitSessionStart(_ context.Context, playerID string, now time.Time, maxSessionsPerDay int) bool {
	k := bucketKey{playerID: playerID, dayKey: clock.DayKey(now)}
	sh := t.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b := sh.bucket(k)
	if b.SessionCount >= maxSessionsPerDay {
		return false
	}
	b.SessionCount++
	b.LastTouchedAt = now
	return true
}

// ReleaseSessionStart decrements the start count of the bucket now falls in.
func (t *InMemoryTracker) ReleaseSessionStart(_ context.Context, playerID string, now time.Time) error {
	k := bucketKey{playerID: playerID, dayKey: clock.DayKey(now)}
	sh := t.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[k]
	if !ok {
		return ErrUnknownBucket
	}
	if b.SessionCount == 0 {
		return ErrNoSessionStart
	}
	b.SessionCount--
	return nil
}

// AdmitPoints checks and reserves under the bucket's shard lock.
func (t *InMemoryTracker) AdmitPoints(_ context.Context, playerID string, now time.Time, score, maxPointsPerDay int) (model.PointsReservation, bool) {
	if score < 0 {
		return model.PointsReservation{}, false
	}
	k := bucketKey{playerID: playerID, dayKey: clock.DayKey(now)}
	sh := t.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b := sh.bucket(k)
	if b.PointsAccrued+b.PointsPending+score > maxPointsPerDay {
		return model.PointsReservation{}, false
	}
	b.PointsPending += score
	b.LastTouchedAt = now
	return model.PointsReservation{PlayerID: playerID, DayKey: k.dayKey, Points: score}, true
}

// CommitPoints moves reserved points into the accrued total.
func (t *InMemoryTracker) CommitPoints(_ context.Context, r model.PointsReservation, now time.Time) error {
	return t.settle(r, now, true)
}

// CancelPoints releases reserved points.
func (t *InMemoryTracker) CancelPoints(_ context.Context, r model.PointsReservation, now time.Time) error {
	return t.settle(r, now, false)
}

func (t *InMemoryTracker) settle(r model.PointsReservation, now time.Time, commit bool) error {
	if r.Points < 0 {
		return ErrNegativePoints
	}
	k := bucketKey{playerID: r.PlayerID, dayKey: r.DayKey}
	sh := t.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[k]
	if !ok {
		return ErrUnknownBucket
	}
	if b.PointsPending < r.Points {
		return ErrBadReservation
	}
	b.PointsPending -= r.Points
	if commit {
		b.PointsAccrued += r.Points
	}
	b.LastTouchedAt = now
	return nil
}

// Sweep drops buckets whose last mutation is older than the retention window.
// Buckets with pending reservations are kept.
func (t *InMemoryTracker) Sweep(ctx context.Context, now time.Time) int {
	removed := 0
	for _, sh := range t.shards {
		if ctx.Err() != nil {
			break
		}
		removed += sh.sweep(now, t.retention)
	}
	return removed
}

func (sh *shard) sweep(now time.Time, retention time.Duration) int {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	removed := 0
	for k, b := range sh.buckets {
		if b.PointsPending == 0 && now.Sub(b.LastTouchedAt) > retention {
			delete(sh.buckets, k)
			removed++
		}
	}
	return removed
}

// Get returns a snapshot of the bucket for playerID on dayKey.
func (t *InMemoryTracker) Get(_ context.Context, playerID, dayKey string) (Bucket, bool) {
	k := bucketKey{playerID: playerID, dayKey: dayKey}
	sh := t.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[k]
	if !ok {
		return Bucket{}, false
	}
	return *b, true
}

// Len returns the number of tracked buckets.
func (t *InMemoryTracker) Len(_ context.Context) int {
	n := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		n += len(sh.buckets)
		sh.mu.Unlock()
	}
	return n
}
