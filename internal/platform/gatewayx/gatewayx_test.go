package gatewayx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/storepay/pkg/config"
)

func testConfig() config.GatewayConfig {
	return config.GatewayConfig{
		Timeout:             time.Second,
		MaxAttempts:         3,
		InitialBackoff:      time.Millisecond,
		MaxBackoff:          5 * time.Millisecond,
		BreakerFailures:     2,
		BreakerOpenDuration: time.Minute,
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{Permanent(&StatusError{StatusCode: 503}), false},
		{&StatusError{StatusCode: 503}, true},
		{&StatusError{StatusCode: 429}, true},
		{&StatusError{StatusCode: 400}, false},
		{fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 502}), true},
		{&DecodeError{Err: errors.New("bad json")}, false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{ErrCircuitOpen, false},
		{errors.New("boom"), false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, IsTransient(c.err), "%v", c.err)
	}
}

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			require.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"value":"x"}`))
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorMessage":"invalid"}`))
		case "/garbage":
			_, _ = w.Write([]byte(`<html>`))
		}
	}))
	defer srv.Close()

	c := NewClient("mpesa", testConfig(), zap.NewNop().Sugar())
	header := http.Header{"Authorization": []string{"Bearer tkn"}}

	var out struct {
		Value string `json:"value"`
	}
	require.NoError(t, c.DoJSON(context.Background(), "ok", http.MethodPost, srv.URL+"/ok", header, map[string]string{"a": "b"}, &out))
	require.Equal(t, "x", out.Value)

	err := c.DoJSON(context.Background(), "bad", http.MethodGet, srv.URL+"/bad", nil, nil, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Contains(t, se.Body, "invalid")

	err = c.DoJSON(context.Background(), "garbage", http.MethodGet, srv.URL+"/garbage", nil, nil, &out)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("pesapal", testConfig(), zap.NewNop().Sugar())
	for i := 0; i < 2; i++ {
		err := c.DoJSON(context.Background(), "status", http.MethodGet, srv.URL, nil, nil, nil)
		require.True(t, IsTransient(err))
	}

	err := c.DoJSON(context.Background(), "status", http.MethodGet, srv.URL, nil, nil, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, int32(2), hits.Load())
}

func TestBreakerIgnoresPermanentFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("mpesa", testConfig(), zap.NewNop().Sugar())
	for i := 0; i < 5; i++ {
		err := c.DoJSON(context.Background(), "stk_push", http.MethodPost, srv.URL, nil, nil, nil)
		require.NotErrorIs(t, err, ErrCircuitOpen)
	}
}

func TestPolicyRetry(t *testing.T) {
	p := PolicyFromConfig(testConfig())

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var notified int
		n, err := p.Retry(context.Background(), func(context.Context) error {
			if notified < 2 {
				return &StatusError{StatusCode: 500}
			}
			return nil
		}, func(error, time.Duration) { notified++ })
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})

	t.Run("stops after max attempts", func(t *testing.T) {
		n, err := p.Retry(context.Background(), func(context.Context) error {
			return &StatusError{StatusCode: 502}
		}, nil)
		require.Error(t, err)
		require.True(t, IsTransient(err))
		require.Equal(t, 3, n)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		n, err := p.Retry(context.Background(), func(context.Context) error {
			return &StatusError{StatusCode: 400}
		}, nil)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, 1, n)
	})
}
