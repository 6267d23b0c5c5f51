// Package httpretry wraps an HTTP client with bounded retries and jittered
// exponential backoff for calls to external APIs.
package httpretry

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/incosense/incosense/internal/pkg/logger"
)

// Doer executes HTTP requests. *http.Client and *Client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client retries transient failures of an underlying Doer.
type Client struct {
	doer       Doer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries sets the number of attempts after the first one.
func WithMaxRetries(n int) Option { return func(c *Client) { c.maxRetries = n } }

// WithBackoff sets the first retry delay and its cap.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) { c.baseDelay, c.maxDelay = base, maxDelay }
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *logger.Logger) Option { return func(c *Client) { c.log = l } }

// New wraps doer. A nil doer gets an http.Client with a 30s timeout.
func New(doer Doer, opts ...Option) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		doer:       doer,
		maxRetries: 2,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   5 * time.Second,
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes req, retrying on 429, 5xx gateway errors and network errors.
// Context cancellation is never retried. The final response is returned
// as-is so callers can inspect its status and body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := req.Context().Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}

			delay := c.delay(attempt)
			c.log.Warn("httpretry: retrying request",
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"host", req.URL.Host,
				"wait", delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, req.Context().Err()
			}
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !retryable(resp.StatusCode) || attempt == c.maxRetries {
			return resp, nil
		}

		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// delay is full-jitter exponential backoff with a 10ms floor.
func (c *Client) delay(attempt int) time.Duration {
	d := c.baseDelay << (attempt - 1)
	if d <= 0 || d > c.maxDelay {
		d = c.maxDelay
	}
	return max(time.Duration(rand.Int63n(int64(d)+1)), 10*time.Millisecond)
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
