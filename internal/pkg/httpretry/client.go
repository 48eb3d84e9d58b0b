// Package httpretry provides an HTTP client that retries transient failures
// with jittered exponential backoff. The tracker uses it for fetches whose
// failure would otherwise reject a legitimate webhook, such as SNS signing
// certificates.
package httpretry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"

	"github.com/ignite/email-tracker/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with retry logic.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	minDelay   time.Duration
	maxDelay   time.Duration
}

// Option customises a RetryClient.
type Option func(*RetryClient)

// WithDelays overrides the backoff bounds.
func WithDelays(lo, hi time.Duration) Option {
	return func(rc *RetryClient) {
		rc.minDelay = lo
		rc.maxDelay = hi
	}
}

// NewRetryClient creates a new RetryClient that wraps the given HTTPDoer.
// If client is nil, a default http.Client with 10s timeout is used.
// maxRetries is the number of retry attempts after the initial request (default 2).
func NewRetryClient(client HTTPDoer, maxRetries int, opts ...Option) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 2
	}
	rc := &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		minDelay:   200 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Do executes the request, retrying on network errors and on 429/5xx
// gateway-style statuses. Client errors and context cancellation are not
// retried. On the final attempt the response is returned as-is.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	b := &backoff.Backoff{Min: rc.minDelay, Max: rc.maxDelay, Factor: 2, Jitter: true}
	var lastErr error

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}

			delay := b.Duration()
			logger.Debug("httpretry: retrying request",
				"attempt", attempt, "max", rc.maxRetries, "host", req.URL.Host, "wait", delay)

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

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}
		if !isRetryableStatus(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		// Drain for connection reuse before retrying
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
