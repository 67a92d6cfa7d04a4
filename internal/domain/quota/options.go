package quota

import "time"

// Option applies a configuration option to the InMemoryTracker.
type Option func(*InMemoryTracker)

// WithRetention sets how long an untouched bucket is kept.
func WithRetention(d time.Duration) Option {
	return func(t *InMemoryTracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// WithShardCount sets the number of independently locked shards.
func WithShardCount(n int) Option {
	return func(t *InMemoryTracker) {
		if n > 0 {
			t.shardCount = n
		}
	}
}
