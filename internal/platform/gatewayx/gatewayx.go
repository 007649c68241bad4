// Package gatewayx holds what the payment gateway clients share: an HTTP client with an explicit
// timeout, error classification, bounded retries and a circuit breaker per provider.
package gatewayx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/metrics"
)

var ErrCircuitOpen = errors.New("payment gateway circuit open")

// StatusError is a non-2xx gateway answer.
type StatusError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

// Transient reports whether the same request may succeed later.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// DecodeError is a 2xx answer whose body could not be parsed. Never retried.
type DecodeError struct {
	Provider string
	Op       string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: malformed response: %v", e.Provider, e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, whatever it wraps.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransient classifies err as worth retrying: network failures, timeouts, 5xx and 429.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Client sends JSON requests to one provider through its circuit breaker.
type Client struct {
	provider string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	log      *zap.SugaredLogger
}

func NewClient(provider string, cfg config.GatewayConfig, l *zap.SugaredLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		provider: provider,
		http:     &http.Client{Timeout: timeout},
		breaker:  newBreaker(provider, cfg, l),
		log:      l,
	}
}

func newBreaker(name string, cfg config.GatewayConfig, l *zap.SugaredLogger) *gobreaker.CircuitBreaker {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// a rejected request says nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warnw("gateway_breaker_state_changed", "provider", name, "from", from.String(), "to", to.String())
		},
	})
}

// Provider is the name used in logs, metrics and errors.
func (c *Client) Provider() string { return c.provider }

// DoJSON marshals body (when non-nil), sends it and decodes a 2xx JSON answer into out.
func (c *Client) DoJSON(ctx context.Context, op, method, url string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", c.provider, op, err)
		}
		reader = bytes.NewReader(raw)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return nil, c.do(op, req, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s", ErrCircuitOpen, c.provider)
	}

	metrics.ObserveGatewayCall(c.provider, op, outcome(err), start)
	if err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("gateway_call_failed",
			"provider", c.provider, "op", op, "err", err, "latency_ms", time.Since(start).Milliseconds())
	}
	return err
}

func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.provider, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", c.provider, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Provider: c.provider, Op: op, Err: err}
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
