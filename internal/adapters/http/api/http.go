// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/comet/internal/domain/model"
	"github.com/okian/comet/internal/domain/validation"
	"github.com/okian/comet/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	// StartSession opens a session for playerID.
	StartSession(ctx context.Context, playerID string) (model.Session, error)
	// FinishSession submits a finished run and blocks until it is awarded or refused.
	FinishSession(ctx context.Context, in validation.FinishInput) (model.FinishResult, error)
	// PointsConfigured reports whether finishes can be awarded at all.
	PointsConfigured() bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	sessionHandler *SessionHandler
	metricsHandler http.Handler

	allowedOrigins []string
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.sessionHandler = NewSessionHandler(deps, s.logger)
	s.metricsHandler = NewMetricsHandler()
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	cors := func(h http.HandlerFunc) http.HandlerFunc {
		return CORSMiddleware(h, s.allowedOrigins)
	}

	start := cors(MetricsMiddleware(s.sessionHandler.HandleStart, "session_start"))
	finish := cors(MetricsMiddleware(s.sessionHandler.HandleFinish, "session_finish"))

	mux.HandleFunc("/api/session/start", start)
	mux.HandleFunc("/session/start", start)
	mux.HandleFunc("/api/session/finish", finish)
	mux.HandleFunc("/session/finish", finish)

	mux.HandleFunc("/health", cors(MetricsMiddleware(s.healthHandler.HandleHealth, "health")))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("/metrics", s.metricsHandler)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
