package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/comet/internal/playsim"
	"github.com/okian/comet/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers     = 50
	defaultSessions    = 5
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultMaxScore    = 250
	defaultMinDuration = 8 * time.Second
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:3000", "Base URL of the service")
		players     = flag.Int("players", defaultPlayers, "Number of simulated players")
		sessions    = flag.Int("sessions", defaultSessions, "Sessions played by each player")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Players in flight at once")
		maxScore    = flag.Int("max-score", defaultMaxScore, "Upper bound for generated scores")
		minDuration = flag.Duration("min-duration", defaultMinDuration, "Shortest reported run")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFormat   = flag.String("log-format", "text", "Log format: text or json")
		verbose     = flag.Bool("verbose", false, "Log every session outcome")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		playsim.ShowHelp()
		return
	}

	if err := logger.InitWith(os.Stdout, *logFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &playsim.Config{
		BaseURL:           *baseURL,
		Players:           *players,
		SessionsPerPlayer: *sessions,
		Workers:           *workers,
		Timeout:           *timeout,
		MaxScore:          *maxScore,
		MinDuration:       *minDuration,
		Verbose:           *verbose,
	}

	if _, err := playsim.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
}
