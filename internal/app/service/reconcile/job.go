package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/tool"
)

// Job runs Sweep on a ticker for the lifetime of the fx app.
type Job struct {
	svc      *Service
	log      *zap.SugaredLogger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJob(cfg *config.Config, svc *Service, log *zap.SugaredLogger) *Job {
	interval := cfg.Reconcile.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Job{svc: svc, log: log, interval: interval}
}

func (j *Job) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.runOnce(ctx)
			}
		}
	}()
	j.log.Infow("reconcile_job_started", "interval", j.interval)
}

func (j *Job) runOnce(ctx context.Context) {
	traceID := tool.GenerateUUIDV7()
	ctx = logctx.WithTraceID(logctx.WithLogger(ctx, j.log.With("trace_id", traceID)), traceID)
	if _, err := j.svc.Sweep(ctx); err != nil && ctx.Err() == nil {
		j.log.Errorw("reconcile_job_failed", "err", err)
	}
}

func (j *Job) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func registerJob(lc fx.Lifecycle, cfg *config.Config, job *Job) {
	if !cfg.Reconcile.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			job.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			job.Stop()
			return nil
		},
	})
}
