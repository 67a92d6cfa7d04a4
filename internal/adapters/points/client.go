// Package points talks to the external points-award service.
//
// The core only cares whether an award was recorded: any error, timeouts
// included, means the points were not saved.
package points

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Request header names understood by the points service.
const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

const (
	defaultPath    = "/play/points"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Awarder credits points to a player.
type Awarder interface {
	Award(ctx context.Context, gameID, playerID string, points int) error
}

// AwardRequest is the JSON body sent to the points service.
type AwardRequest struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Points   int    `json:"points"`
}

// HTTPClient is an Awarder backed by the points service HTTP API.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	secretKey string
	path      string
	client    *http.Client
	clock     clockwork.Clock
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL, apiKey, secretKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		secretKey: secretKey,
		path:      defaultPath,
		client:    &http.Client{Timeout: defaultTimeout},
		clock:     clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether credentials and endpoint are present.
func (c *HTTPClient) Configured() bool {
	return c.baseURL != "" && c.apiKey != "" && c.secretKey != ""
}

// Award posts the award and treats any non-2xx response as a failure.
func (c *HTTPClient) Award(ctx context.Context, gameID, playerID string, points int) error {
	if !c.Configured() || gameID == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(AwardRequest{GameID: gameID, PlayerID: playerID, Points: points})
	if err != nil {
		return fmt.Errorf("marshal award request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create award request: %w", err)
	}

	ts := strconv.FormatInt(c.clock.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, Sign(c.secretKey, ts, body))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send award request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Sign returns the hex HMAC-SHA256 of "timestamp.body" keyed by secret.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
