package gatewayx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fatflowers/storepay/pkg/config"
)

// Policy bounds how often a submission is attempted.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func PolicyFromConfig(cfg config.GatewayConfig) Policy {
	return Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialBackoff,
		MaxInterval:     cfg.MaxBackoff,
	}
}

// Retry calls op until it succeeds, returns a non-transient error, ctx ends or the attempts run
// out. It returns how many attempts were made and the last error.
func (p Policy) Retry(ctx context.Context, op func(ctx context.Context) error, notify func(err error, wait time.Duration)) (int, error) {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, attempts-1), ctx)

	made := 0
	err := backoff.RetryNotify(func() error {
		made++
		err := op(ctx)
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
	return made, err
}
