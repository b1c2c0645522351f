// Package remote reaches the long-running server-side jobs (PDF rendering,
// termination letters, payroll export) behind an opaque procedure boundary.
//
// Every call goes through a rate limiter, a circuit breaker and a bounded
// retry that only retries transport failures and 5xx responses. Whatever
// fails surfaces as an infrastructure error.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// Procedure names.
const (
	RenderContractPDF = "contracts.render_pdf"
	TerminationLetter = "contracts.termination_letter"
	TerminationBatch  = "contracts.termination_batch"
	PayrollExport     = "payroll.export"
)

const (
	maxResponseBytes      = 4 << 20
	defaultAttemptTimeout = 10 * time.Second
)

//go:generate mockgen -source=client.go -destination=mocks/mocks.go -package=mocks Caller

// Caller invokes a named procedure with a JSON payload.
type Caller interface {
	Call(ctx context.Context, procedure string, payload any) (json.RawMessage, error)
}

// Transport performs one attempt.
type Transport interface {
	Post(ctx context.Context, procedure string, body []byte) ([]byte, error)
}

// Metrics observes calls and breaker transitions.
type Metrics interface {
	IncRemoteCall(procedure, result string)
	SetBreakerState(name string, state float64)
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote procedure returned %d: %s", e.StatusCode, e.Body)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// HTTPTransport posts to {base}/procedures/{name}.
type HTTPTransport struct {
	base   string
	client *http.Client
}

func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{base: strings.TrimRight(baseURL, "/"), client: client}
}

func (t *HTTPTransport) Post(ctx context.Context, procedure string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/procedures/"+procedure, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// Settings tune the reliability wrapper.
type Settings struct {
	RatePerSecond   float64
	Burst           int
	RetryAttempts   uint
	RetryDelay      time.Duration
	AttemptTimeout  time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// BreakerMaxRequests is the probe budget while half-open; BreakerInterval
	// resets the closed-state counts.
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
}

// Client wraps a Transport with rate limiting, a breaker and retries.
type Client struct {
	transport Transport
	cb        *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	settings  Settings
	logger    *slog.Logger
	metrics   Metrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func NewClient(transport Transport, settings Settings, opts ...Option) *Client {
	if settings.RatePerSecond <= 0 {
		settings.RatePerSecond = 20
	}
	if settings.Burst <= 0 {
		settings.Burst = 5
	}
	if settings.RetryAttempts == 0 {
		settings.RetryAttempts = 3
	}
	if settings.RetryDelay <= 0 {
		settings.RetryDelay = 100 * time.Millisecond
	}
	if settings.AttemptTimeout <= 0 {
		settings.AttemptTimeout = defaultAttemptTimeout
	}
	if settings.BreakerFailures == 0 {
		settings.BreakerFailures = 5
	}
	if settings.BreakerTimeout <= 0 {
		settings.BreakerTimeout = 30 * time.Second
	}
	if settings.BreakerMaxRequests == 0 {
		settings.BreakerMaxRequests = 1
	}
	if settings.BreakerInterval <= 0 {
		settings.BreakerInterval = time.Minute
	}

	c := &Client{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(settings.RatePerSecond), settings.Burst),
		settings:  settings,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-procedures",
		MaxRequests: settings.BreakerMaxRequests,
		Interval:    settings.BreakerInterval,
		Timeout:     settings.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("remote breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if c.metrics != nil {
				c.metrics.SetBreakerState(name, float64(to))
			}
		},
	})
	return c
}

func (c *Client) Call(ctx context.Context, procedure string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode remote payload")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.count(procedure, "rate_limited")
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "remote procedure "+procedure+" rate limited")
	}

	out, err := c.cb.Execute(func() (any, error) {
		var data []byte
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(c.settings.RetryAttempts),
			retry.Delay(c.settings.RetryDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(retryable),
		)
		err := r.Do(func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.settings.AttemptTimeout)
			defer cancel()
			var callErr error
			data, callErr = c.transport.Post(attemptCtx, procedure, body)
			return callErr
		})
		return data, err
	})
	if err != nil {
		c.count(procedure, "error")
		c.logger.ErrorContext(ctx, "remote procedure failed", "procedure", procedure, "error", err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "remote procedure "+procedure+" unavailable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "remote procedure "+procedure+" failed")
	}
	c.count(procedure, "ok")
	return json.RawMessage(out.([]byte)), nil
}

func (c *Client) count(procedure, result string) {
	if c.metrics != nil {
		c.metrics.IncRemoteCall(procedure, result)
	}
}
