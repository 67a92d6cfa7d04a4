package api

import "github.com/okian/comet/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins restricts cross-origin callers. An empty list allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = append([]string(nil), origins...)
	}
}

// WithLogger sets the logger used by the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
