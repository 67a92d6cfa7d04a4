package session

import "time"

// Option applies a configuration option to the InMemoryStore.
type Option func(*InMemoryStore)

// WithTTL sets how long a session may stay open before it expires.
func WithTTL(ttl time.Duration) Option {
	return func(s *InMemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxSessions bounds the number of tracked sessions. Zero or negative
// means unbounded.
func WithMaxSessions(n int) Option {
	return func(s *InMemoryStore) {
		s.maxSessions = int64(n)
	}
}

// WithShardCount sets the number of independently locked shards.
func WithShardCount(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithIDGenerator replaces the session id source.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *InMemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}
