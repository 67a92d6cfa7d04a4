package points

import (
	"net/http"

	"github.com/jonboulle/clockwork"
)

// Option applies a configuration option to the HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets the underlying transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.client = c
		}
	}
}

// WithClock sets the clock used for request timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithPath overrides the award endpoint path.
func WithPath(p string) Option {
	return func(h *HTTPClient) {
		if p != "" {
			h.path = p
		}
	}
}
