package playsim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/comet/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	startPath  = "/api/session/start"
	finishPath = "/api/session/finish"
	healthPath = "/health"

	percentageMultiplier = 100
)

// counters mirrors Stats with atomics so players can update it concurrently.
type counters struct {
	started, startRejected       atomic.Int64
	finished, finishRejected     atomic.Int64
	replayRefused, replayAllowed atomic.Int64
	points, failed               atomic.Int64
}

// Run executes a full simulation and returns its statistics. It fails when
// the service is unhealthy or accepted any finished session twice.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.Players <= 0 || cfg.SessionsPerPlayer <= 0 || cfg.Workers <= 0 {
		return nil, fmt.Errorf("%w: players, sessions and workers must be positive", ErrBadConfig)
	}

	log := logger.Get().Named("playsim")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting comet play simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("sessionsPerPlayer", cfg.SessionsPerPlayer),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := checkHealth(ctx, c); err != nil {
		return nil, err
	}

	var n counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Players; i++ {
		playerID := "sim-" + uuid.NewString()
		g.Go(func() error {
			return play(gctx, c, cfg, playerID, &n, log)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation aborted: %w", err)
	}

	stats.SessionsStarted = n.started.Load()
	stats.StartsRejected = n.startRejected.Load()
	stats.Finished = n.finished.Load()
	stats.FinishesRejected = n.finishRejected.Load()
	stats.ReplaysRefused = n.replayRefused.Load()
	stats.ReplaysAccepted = n.replayAllowed.Load()
	stats.PointsSaved = n.points.Load()
	stats.Failed = n.failed.Load()
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, log, stats)

	if stats.ReplaysAccepted > 0 {
		return stats, fmt.Errorf("%w: %d replays accepted", ErrReplayAccepted, stats.ReplaysAccepted)
	}
	return stats, nil
}

// checkHealth verifies the service is running and able to award points.
func checkHealth(ctx context.Context, c *client) error {
	var h healthResponse
	status, err := c.get(ctx, healthPath, &h)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK || !h.OK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	if !h.PointsConfigured {
		return ErrNotConfigured
	}
	return nil
}

// play runs one player's sessions in order. Each accepted finish is replayed
// once and the replay must be refused.
func play(ctx context.Context, c *client, cfg *Config, playerID string, n *counters, log logger.Logger) error {
	for k := 0; k < cfg.SessionsPerPlayer; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var started startResponse
		status, err := c.post(ctx, startPath, map[string]string{"playerId": playerID}, &started)
		switch {
		case err != nil:
			n.failed.Add(1)
			continue
		case status != http.StatusOK:
			n.startRejected.Add(1)
			continue
		}
		n.started.Add(1)

		req := finishRequest{
			SessionID:  started.SessionID,
			PlayerID:   playerID,
			Score:      rand.IntN(cfg.MaxScore + 1),
			DurationMs: cfg.MinDuration.Milliseconds() + rand.Int64N(int64(time.Minute/time.Millisecond)),
		}

		var done finishResponse
		status, err = c.post(ctx, finishPath, req, &done)
		switch {
		case err != nil:
			n.failed.Add(1)
			continue
		case status != http.StatusOK:
			n.finishRejected.Add(1)
			if cfg.Verbose {
				log.Info(ctx, "finish refused", logger.String("playerId", playerID), logger.Int("status", status))
			}
			continue
		}
		n.finished.Add(1)
		n.points.Add(int64(done.SavedPoints))

		status, err = c.post(ctx, finishPath, req, nil)
		switch {
		case err != nil:
			n.failed.Add(1)
		case status == http.StatusConflict:
			n.replayRefused.Add(1)
		case status == http.StatusOK:
			n.replayAllowed.Add(1)
			log.Error(ctx, "replayed finish was accepted",
				logger.String("playerId", playerID),
				logger.String("sessionId", req.SessionID),
			)
		default:
			n.failed.Add(1)
		}

		if cfg.Verbose {
			log.Info(ctx, "session played",
				logger.String("playerId", playerID),
				logger.Int("score", req.Score),
				logger.Int("savedPoints", done.SavedPoints),
			)
		}
	}
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var finishRate, sessionsPerSecond float64
	if stats.SessionsStarted > 0 {
		finishRate = float64(stats.Finished) / float64(stats.SessionsStarted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		sessionsPerSecond = float64(stats.SessionsStarted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int64("sessionsStarted", stats.SessionsStarted),
		logger.Int64("startsRejected", stats.StartsRejected),
		logger.Int64("finished", stats.Finished),
		logger.Int64("finishesRejected", stats.FinishesRejected),
		logger.Int64("replaysRefused", stats.ReplaysRefused),
		logger.Int64("replaysAccepted", stats.ReplaysAccepted),
		logger.Int64("pointsSaved", stats.PointsSaved),
		logger.Int64("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("finishRate", finishRate),
		logger.Float64("sessionsPerSecond", sessionsPerSecond),
	)
}
