package api

import (
	"errors"
	"net/http"

	"github.com/okian/comet/internal/domain/errs"
	"github.com/okian/comet/internal/domain/session"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrOriginNotAllowed = errors.New("origin not allowed")
)

// Messages returned for failures whose cause is not shown to callers.
var (
	errInvalidSession = errors.New("invalid session")
	errSessionExpired = errors.New("session expired")
	errAlreadyDone    = errors.New("session already submitted")
	errUpstream       = errors.New("failed to save points")
	errBusy           = errors.New("server busy, retry later")
	errNotConfigured  = errors.New("server is missing points service configuration")
	errInternal       = errors.New("internal error")
)

// classify maps a service error to its HTTP status, code and public message.
func classify(err error) (int, string, error) {
	switch {
	case errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted", errAlreadyDone
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "invalid_request", cause(err)
	case errors.Is(err, session.ErrExpired):
		return http.StatusBadRequest, "session_expired", errSessionExpired
	case errors.Is(err, errs.ErrSessionState):
		return http.StatusBadRequest, "invalid_session", errInvalidSession
	case errors.Is(err, errs.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded", cause(err)
	case errors.Is(err, errs.ErrUpstream):
		return http.StatusBadGateway, "upstream_failure", errUpstream
	case errors.Is(err, errs.ErrCapacity):
		return http.StatusServiceUnavailable, "capacity", errBusy
	case errors.Is(err, errs.ErrNotConfigured):
		return http.StatusInternalServerError, "not_configured", errNotConfigured
	default:
		return http.StatusInternalServerError, "internal", errInternal
	}
}

// cause strips the operation prefix so only the reason reaches the caller.
func cause(err error) error {
	var e *errs.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err
	}
	return err
}
