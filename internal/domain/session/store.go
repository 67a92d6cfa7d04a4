// Package session owns the play-session table and every state transition on it.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/okian/comet/internal/domain/model"
)

// Default store configuration constants.
const (
	defaultTTL         = 20 * time.Minute
	defaultShardCount  = 8
	defaultMaxSessions = 100_000
)

// Store provides the session lifecycle operations.
type Store interface {
	// Create stores a new OPEN session for playerID.
	Create(ctx context.Context, playerID string, now time.Time) (model.Session, error)

	// Claim atomically moves an OPEN, live session owned by playerID to CLAIMED.
	// On failure it returns one of ErrNotFound, ErrPlayerMismatch,
	// ErrAlreadySubmitted or ErrExpired and leaves the session untouched.
	Claim(ctx context.Context, id, playerID string, now time.Time) (model.Session, error)

	// Commit moves a CLAIMED session to SUBMITTED.
	Commit(ctx context.Context, id string) error

	// Release moves a CLAIMED session back to OPEN so the finish can be retried.
	Release(ctx context.Context, id string) error

	// Sweep removes SUBMITTED sessions and sessions past their TTL.
	Sweep(ctx context.Context, now time.Time) int

	// Get returns a copy of the session with its effective state at now.
	Get(ctx context.Context, id string, now time.Time) (model.Session, error)

	// Len returns the number of tracked sessions.
	Len(ctx context.Context) int

	// Full reports whether a Create would currently be refused for capacity.
	Full(ctx context.Context) bool
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

// InMemoryStore is a sharded, mutex-guarded Store.
type InMemoryStore struct {
	shards      []*shard
	shardCount  int
	ttl         time.Duration
	maxSessions int64
	count       atomic.Int64
	newID       func() (string, error)
}

// NewInMemoryStore creates a store with configuration options.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		shardCount:  defaultShardCount,
		ttl:         defaultTTL,
		maxSessions: defaultMaxSessions,
		newID:       randomID,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*model.Session)}
	}
	return s
}

// randomID returns a version 4 UUID drawn from crypto/rand.
func randomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return id.String(), nil
}

func (s *InMemoryStore) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%uint64(len(s.shards))]
}

// Create stores a new OPEN session.
func (s *InMemoryStore) Create(_ context.Context, playerID string, now time.Time) (model.Session, error) {
	if n := s.count.Add(1); s.maxSessions > 0 && n > s.maxSessions {
		s.count.Add(-1)
		return model.Session{}, ErrCapacity
	}

	id, err := s.newID()
	if err != nil {
		s.count.Add(-1)
		return model.Session{}, err
	}

	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.sessions[id]; exists {
		s.count.Add(-1)
		return model.Session{}, fmt.Errorf("%w: %s", ErrIDCollision, id)
	}

	sess := &model.Session{
		ID:        id,
		PlayerID:  playerID,
		StartedAt: now,
		State:     model.StateOpen,
	}
	sh.sessions[id] = sess
	return *sess, nil
}

// Claim performs the check-and-transition under the shard lock.
func (s *InMemoryStore) Claim(_ context.Context, id, playerID string, now time.Time) (model.Session, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	switch {
	case !ok:
		return model.Session{}, ErrNotFound
	case sess.PlayerID != playerID:
		return model.Session{}, ErrPlayerMismatch
	case sess.State == model.StateClaimed || sess.State == model.StateSubmitted:
		return model.Session{}, ErrAlreadySubmitted
	case sess.State == model.StateExpired || sess.Expired(now, s.ttl):
		return model.Session{}, ErrExpired
	}

	sess.State = model.StateClaimed
	return *sess, nil
}

// Commit moves CLAIMED to SUBMITTED.
func (s *InMemoryStore) Commit(_ context.Context, id string) error {
	return s.transition(id, model.StateSubmitted)
}

// Release moves CLAIMED back to OPEN.
func (s *InMemoryStore) Release(_ context.Context, id string) error {
	return s.transition(id, model.StateOpen)
}

func (s *InMemoryStore) transition(id string, to model.State) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.State != model.StateClaimed {
		return fmt.Errorf("%w: state %s", ErrNotClaimed, sess.State)
	}
	sess.State = to
	return nil
}

// Sweep evicts SUBMITTED sessions and any session older than the TTL.
func (s *InMemoryStore) Sweep(ctx context.Context, now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		if ctx.Err() != nil {
			break
		}
		removed += sh.sweep(now, s.ttl)
	}
	s.count.Add(int64(-removed))
	return removed
}

func (sh *shard) sweep(now time.Time, ttl time.Duration) int {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	removed := 0
	for id, sess := range sh.sessions {
		if sess.State == model.StateSubmitted || sess.State == model.StateExpired || sess.Expired(now, ttl) {
			delete(sh.sessions, id)
			removed++
		}
	}
	return removed
}

// Get returns a copy of the session. An OPEN session past its TTL reads as EXPIRED.
func (s *InMemoryStore) Get(_ context.Context, id string, now time.Time) (model.Session, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	out := *sess
	if out.State == model.StateOpen && out.Expired(now, s.ttl) {
		out.State = model.StateExpired
	}
	return out, nil
}

// Len returns the number of tracked sessions.
func (s *InMemoryStore) Len(_ context.Context) int {
	return int(s.count.Load())
}

// Full reports whether the store is at capacity.
func (s *InMemoryStore) Full(_ context.Context) bool {
	return s.maxSessions > 0 && s.count.Load() >= s.maxSessions
}
