// Package upstream is the HTTP transport shared by the climate and health
// providers. Every request passes through a per-provider rate limiter, a
// retry loop with exponential backoff, and a circuit breaker.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/climate-health-dashboard/internal/observability"
)

const maxBodyBytes = 32 << 20

// Settings configures one provider's client.
type Settings struct {
	Source             string
	Timeout            time.Duration
	MaxRetries         int
	RateLimit          float64 // requests per second
	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	// InitialBackoff is the first retry delay. Zero uses 500ms.
	InitialBackoff time.Duration
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Source, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client performs GET requests against a single provider.
type Client struct {
	source         string
	httpClient     *http.Client
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	maxRetries     int
	initialBackoff time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// New creates a Client. The breaker opens after BreakerFailures consecutive
// failed calls and probes again after BreakerOpenTimeout.
func New(s Settings, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		source:         s.Source,
		httpClient:     &http.Client{Timeout: s.Timeout},
		limiter:        rate.NewLimiter(rate.Limit(s.RateLimit), 1),
		maxRetries:     s.MaxRetries,
		initialBackoff: s.InitialBackoff,
		logger:         logger.With("source", s.Source),
		metrics:        metrics,
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = 500 * time.Millisecond
	}

	failures := s.BreakerFailures
	if failures <= 0 {
		failures = 1
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    s.Source,
		Timeout: s.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			c.metrics.BreakerState.WithLabelValues(name).Set(breakerGauge(to))
		},
	})
	c.metrics.BreakerState.WithLabelValues(s.Source).Set(observability.BreakerClosed)
	return c
}

// Source returns the provider name used in logs and metrics.
func (c *Client) Source() string { return c.source }

// State returns the current circuit breaker state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

// GetJSON fetches url and decodes the JSON body into dst.
func (c *Client) GetJSON(ctx context.Context, url string, dst any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.source, err)
	}
	return nil
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, url)
	})
	c.metrics.SourceDuration.WithLabelValues(c.source).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.SourceRequests.WithLabelValues(c.source, "rejected").Inc()
		return nil, fmt.Errorf("%s: %w", c.source, err)
	}
	if err != nil {
		c.metrics.SourceRequests.WithLabelValues(c.source, "error").Inc()
		c.logger.Warn("upstream request failed", "url", url, "error", err)
		return nil, err
	}
	c.metrics.SourceRequests.WithLabelValues(c.source, "success").Inc()
	return res.([]byte), nil
}

func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff

	var body []byte
	attempt := 0
	op := func() error {
		if attempt > 0 {
			c.metrics.SourceRequests.WithLabelValues(c.source, "retry").Inc()
		}
		attempt++

		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		b, err := c.do(ctx, url)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Temporary() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.source, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request: %w", c.source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", c.source, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Source: c.source, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// countsAsSuccess keeps client errors and caller cancellation from tripping
// the breaker; only provider-side failures count.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && !se.Temporary()
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return observability.BreakerOpen
	case gobreaker.StateHalfOpen:
		return observability.BreakerHalfOpen
	default:
		return observability.BreakerClosed
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
