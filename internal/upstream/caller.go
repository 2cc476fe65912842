// Package upstream holds the shared HTTP plumbing for the three data
// sources: bounded retries with jittered backoff, circuit breaking, status
// code mapping, and per-source metrics.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/dcrowell/homeboard/internal/breaker"
	"github.com/dcrowell/homeboard/internal/observability"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
)

// Caller issues JSON requests against one upstream source with retries.
type Caller struct {
	source         string
	client         *http.Client
	timeout        time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *breaker.Breaker
}

// NewCaller creates a Caller for the named source. The source name labels
// metrics and error messages.
func NewCaller(source string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) *Caller {
	if retryAttempts <= 0 {
		retryAttempts = 1
	}
	return &Caller{
		source:         source,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker wires a circuit breaker around every attempt.
func (c *Caller) SetBreaker(b *breaker.Breaker) {
	c.breaker = b
}

// Source returns the source name this caller is labeled with.
func (c *Caller) Source() string {
	return c.source
}

// GetJSON issues a GET and decodes the response body into out, retrying
// retryable failures with exponential backoff and jitter.
func (c *Caller) GetJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into out.
func (c *Caller) PostJSON(ctx context.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.source, err)
	}
	return c.do(ctx, http.MethodPost, url, raw, out)
}

func (c *Caller) do(ctx context.Context, method, url string, body []byte, out any) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(c.source).Inc()
			delay := c.backoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var err error
		if c.breaker != nil {
			err = c.breaker.Call(func() error {
				return c.attempt(ctx, method, url, body, out)
			})
		} else {
			err = c.attempt(ctx, method, url, body, out)
		}
		if err == nil {
			return nil
		}

		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("%s: exhausted retries: %w", c.source, lastErr)
}

func (c *Caller) attempt(ctx context.Context, method, url string, body []byte, out any) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(c.source, "error").Inc()
		return fmt.Errorf("%s: build request: %w", c.source, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(c.source, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(c.source, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: request timeout: %w", c.source, err)
		}
		return fmt.Errorf("%s: http request failed: %w", c.source, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(c.source, status).Inc()
	observability.UpstreamDuration.WithLabelValues(c.source, status).Observe(duration)

	if err := mapStatus(resp.StatusCode); err != nil {
		return fmt.Errorf("%s: %w", c.source, err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response body: %w", c.source, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: parse response: %w", c.source, err)
	}
	return nil
}

func (c *Caller) backoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, breaker.ErrOpen) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "connection refused") {
		return true
	}

	return false
}

func mapStatus(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}
	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
