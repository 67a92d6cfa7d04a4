package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	EnvPrefix = "COMET_"
	EnvFile   = "COMET_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if COMET_CONFIG is set
//  3. env (prefix COMET_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// COMET_SESSION_TTL_MS -> session_ttl_ms. Underscores are kept to match
	// the flat koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values a running service depends on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}

	positive := []struct {
		name string
		v    int
	}{
		{"session_ttl_ms", c.SessionTTLMS},
		{"max_sessions_per_day", c.MaxSessionsPerDay},
		{"max_points_per_day", c.MaxPointsPerDay},
		{"max_tracked_sessions", c.MaxTrackedSessions},
		{"stats_retention_ms", c.StatsRetentionMS},
		{"sweep_interval_ms", c.SweepIntervalMS},
		{"shard_count", c.ShardCount},
		{"award_timeout_ms", c.AwardTimeoutMS},
		{"award_workers", c.AwardWorkers},
		{"award_queue_size", c.AwardQueueSize},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.v)
		}
	}

	if c.MinSessionMS < 0 || c.MaxScorePerSession < 0 {
		return fmt.Errorf("%w: min_session_ms and max_score_per_session must not be negative", ErrInvalidConfig)
	}
	if c.MinSessionMS > c.SessionTTLMS {
		return fmt.Errorf("%w: min_session_ms (%d) exceeds session_ttl_ms (%d)", ErrInvalidConfig, c.MinSessionMS, c.SessionTTLMS)
	}
	return nil
}
