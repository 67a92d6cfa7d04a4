package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/comet/internal/domain/errs"
	"github.com/okian/comet/internal/domain/model"
	"github.com/okian/comet/internal/domain/validation"
	"github.com/okian/comet/pkg/logger"
)

const maxBodyBytes = 16 << 10

// SessionService is the part of the service the session routes call.
type SessionService interface {
	StartSession(ctx context.Context, playerID string) (model.Session, error)
	FinishSession(ctx context.Context, in validation.FinishInput) (model.FinishResult, error)
}

// SessionHandler handles session start and finish requests.
type SessionHandler struct {
	svc    SessionService
	logger logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc SessionService, l logger.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, logger: l}
}

type startRequest struct {
	PlayerID text `json:"playerId"`
}

type startResponse struct {
	SessionID string `json:"sessionId"`
	StartedAt int64  `json:"startedAt"`
}

type finishRequest struct {
	SessionID  text   `json:"sessionId"`
	PlayerID   text   `json:"playerId"`
	Score      number `json:"score"`
	DurationMs number `json:"durationMs"`
}

type finishResponse struct {
	OK          bool `json:"ok"`
	SavedPoints int  `json:"savedPoints"`
}

// HandleStart handles POST /api/session/start.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}

	var req startRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	sess, err := h.svc.StartSession(r.Context(), string(req.PlayerID))
	if err != nil {
		h.writeServiceError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{SessionID: sess.ID, StartedAt: sess.StartedAt.UnixMilli()})
}

// HandleFinish handles POST /api/session/finish.
func (h *SessionHandler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}

	var req finishRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := h.svc.FinishSession(r.Context(), validation.FinishInput{
		SessionID:  string(req.SessionID),
		PlayerID:   string(req.PlayerID),
		Score:      float64(req.Score),
		DurationMs: float64(req.DurationMs),
	})
	if err != nil {
		h.writeServiceError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, finishResponse{OK: true, SavedPoints: res.SavedPoints})
}

func (h *SessionHandler) writeServiceError(r *http.Request, w http.ResponseWriter, err error) {
	status, code, public := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.String("kind", errs.KindOf(err).Error()),
			logger.Error(err),
		)
	}
	writeError(w, status, code, public)
}

// decodeBody reads a bounded JSON body into v. An empty body leaves v zeroed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}
