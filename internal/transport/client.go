// Package transport performs synchronous JSON POST requests against the
// licensing backend.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/faerion/fsauth/internal/config"
)

// DefaultTimeout bounds every round trip so a hung backend cannot stall the
// embedding application indefinitely.
const DefaultTimeout = 30 * time.Second

// ErrInvalidResponse is returned when the server's body is not valid JSON.
// Callers treat it as the generic failure branch: there is intentionally no
// distinction between "network said no" and "server said nonsense".
var ErrInvalidResponse = errors.New("server returned an invalid JSON response")

// Options configures the transport client.
type Options struct {
	// BaseURL is the backend root, e.g. https://licensing.example.com.
	BaseURL string
	// UserAgent is sent with every request.
	UserAgent string
	// Timeout overrides DefaultTimeout when non-zero.
	Timeout time.Duration
	// Proxy holds optional outbound proxy settings.
	Proxy *config.ProxyConfig
	// Logger receives request-level debug logging.
	Logger zerolog.Logger
}

// Client posts JSON payloads to the backend. TLS is implied by the base URL
// scheme; there is no retry and no certificate pinning.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a client. The base URL is parsed once at construction.
func New(opts Options) (*Client, error) {
	parsed, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https scheme, got %q", parsed.Scheme)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient, err := newHTTPClient(timeout, opts.Proxy)
	if err != nil {
		return nil, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "FSAuth"
	}

	return &Client{
		baseURL:    parsed.String(),
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     opts.Logger.With().Str("component", "transport").Logger(),
	}, nil
}

// Post sends payload as a JSON body to baseURL+path and decodes the response
// body into result. Network and request-construction failures are returned
// wrapped; a body that is not valid JSON returns ErrInvalidResponse. The HTTP
// status code is not inspected: the backend conveys domain failure in the
// body via success=false, sometimes with non-2xx codes.
func (c *Client) Post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("body_bytes", len(respBody)).
		Msg("request completed")

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, ErrInvalidResponse)
	}
	return nil
}
