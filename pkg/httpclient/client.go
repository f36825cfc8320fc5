// Package httpclient fetches remote media inputs into memory. Requests are
// retried with exponential backoff on transport errors and on 429, 502, 503
// and 504; bodies are unwrapped by Content-Encoding and capped after
// decompression.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmylchreest/memmux/pkg/decompress"
)

var (
	// ErrMaxRetries is returned when every attempt failed.
	ErrMaxRetries = errors.New("max retries exceeded")
	// ErrResponseTooLarge is returned when a decompressed body exceeds
	// Config.MaxResponseSize.
	ErrResponseTooLarge = errors.New("response body exceeds maximum size limit")
)

// Default configuration values.
const (
	DefaultTimeout           = 60 * time.Second
	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 500 * time.Millisecond
	DefaultRetryMaxDelay     = 10 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultAcceptEncoding    = "gzip, deflate, br"
)

// StatusError is a final non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Config holds the client configuration.
type Config struct {
	Timeout           time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	RetryMaxDelay     time.Duration
	BackoffMultiplier float64
	UserAgent         string
	Logger            *slog.Logger
	// MaxResponseSize caps the body after decompression, 0 for no limit.
	MaxResponseSize int64
	// BaseClient is the underlying client; nil builds one from Timeout.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with the package defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           DefaultTimeout,
		RetryAttempts:     DefaultRetryAttempts,
		RetryDelay:        DefaultRetryDelay,
		RetryMaxDelay:     DefaultRetryMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// Client fetches URLs with retries.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = DefaultBackoffMultiplier
	}
	client := cfg.BaseClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{config: cfg, client: client, logger: logger}
}

// Fetch downloads url and returns its decompressed body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("url", url),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = min(time.Duration(float64(delay)*c.config.BackoffMultiplier), c.config.RetryMaxDelay)
		}

		data, retry, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("request failed",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
	return nil, fmt.Errorf("%w: %w", ErrMaxRetries, lastErr)
}

// fetchOnce performs one attempt and reports whether a failure is retryable.
func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept-Encoding", DefaultAcceptEncoding)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, err
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	if isRetryableStatus(resp.StatusCode) {
		return nil, true, &StatusError{URL: url, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &StatusError{URL: url, Status: resp.StatusCode}
	}

	body, err := decompress.NewEncodingReader(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, false, err
	}
	defer body.Close()

	data, err := decompress.ReadAll(body, c.config.MaxResponseSize)
	if errors.Is(err, decompress.ErrTooLarge) {
		return nil, false, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, c.config.MaxResponseSize)
	}
	if err != nil {
		return nil, true, fmt.Errorf("reading body: %w", err)
	}

	c.logger.Debug("request completed",
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.Int("bytes", len(data)),
	)
	return data, false, nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
