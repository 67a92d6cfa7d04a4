// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case and map 1:1 to COMET_ environment variables.
// - Durations are integers in milliseconds; use the accessor methods.
// - Errors returned by Load match ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// MetricsNamespace prefixes every exported Prometheus metric.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// AllowedOrigins is a comma separated CORS allow-list. Empty allows any origin.
	AllowedOrigins string `koanf:"allowed_origins"`

	// Session and quota limits.
	SessionTTLMS       int `koanf:"session_ttl_ms"`
	MinSessionMS       int `koanf:"min_session_ms"`
	MaxScorePerSession int `koanf:"max_score_per_session"`
	MaxSessionsPerDay  int `koanf:"max_sessions_per_day"`
	MaxPointsPerDay    int `koanf:"max_points_per_day"`

	// MaxTrackedSessions bounds the in-memory session table.
	MaxTrackedSessions int `koanf:"max_tracked_sessions"`

	// StatsRetentionMS is how long an idle quota bucket is kept.
	StatsRetentionMS int `koanf:"stats_retention_ms"`

	// SweepIntervalMS is the reclamation period.
	SweepIntervalMS int `koanf:"sweep_interval_ms"`

	// ShardCount configures the number of lock shards in both stores.
	ShardCount int `koanf:"shard_count"`

	// Award dispatch.
	AwardTimeoutMS int `koanf:"award_timeout_ms"`
	AwardWorkers   int `koanf:"award_workers"`
	AwardQueueSize int `koanf:"award_queue_size"`

	// Points service.
	PointsBaseURL   string `koanf:"points_base_url"`
	GameID          string `koanf:"game_id"`
	PointsAPIKey    string `koanf:"points_api_key"`
	PointsSecretKey string `koanf:"points_secret_key"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":3000",
		MetricsNamespace:   "comet",
		SessionTTLMS:       20 * 60 * 1000,
		MinSessionMS:       8000,
		MaxScorePerSession: 250,
		MaxSessionsPerDay:  30,
		MaxPointsPerDay:    3000,
		MaxTrackedSessions: 100_000,
		StatsRetentionMS:   48 * 60 * 60 * 1000,
		SweepIntervalMS:    60_000,
		ShardCount:         8,
		AwardTimeoutMS:     5000,
		AwardWorkers:       16,
		AwardQueueSize:     1024,
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// SessionTTL returns SessionTTLMS as a duration.
func (c *Config) SessionTTL() time.Duration { return ms(c.SessionTTLMS) }

// MinSession returns MinSessionMS as a duration.
func (c *Config) MinSession() time.Duration { return ms(c.MinSessionMS) }

// StatsRetention returns StatsRetentionMS as a duration.
func (c *Config) StatsRetention() time.Duration { return ms(c.StatsRetentionMS) }

// SweepInterval returns SweepIntervalMS as a duration.
func (c *Config) SweepInterval() time.Duration { return ms(c.SweepIntervalMS) }

// AwardTimeout returns AwardTimeoutMS as a duration.
func (c *Config) AwardTimeout() time.Duration { return ms(c.AwardTimeoutMS) }

// MetricLabels returns the constant labels attached to every metric.
func (c *Config) MetricLabels() map[string]string {
	if c.GameID == "" {
		return nil
	}
	return map[string]string{"game": c.GameID}
}

// Origins splits AllowedOrigins, dropping blanks.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
