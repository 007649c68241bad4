package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/types"
)

const expiredReason = "expired"

type SweepReport struct {
	Scanned      int `json:"scanned"`
	Settled      int `json:"settled"`
	Expired      int `json:"expired"`
	StillPending int `json:"still_pending"`
	Failed       int `json:"failed"`
}

// Sweep settles PENDING transactions that have waited longer than the configured grace period:
// known provider refs are queried, never-acknowledged attempts are expired. Safe to re-run.
func (s *Service) Sweep(ctx context.Context) (*SweepReport, error) {
	cfg := s.cfg.Reconcile
	now := s.now()
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}

	var pending []*models.Transaction
	err := s.db.WithContext(ctx).
		Where("UPPER(TRIM(status)) IN ? AND created_at < ?", types.TransactionStatusPending.Spellings(), now.Add(-cfg.PendingAfter)).
		Order("created_at ASC").
		Limit(batch).
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	log := logctx.FromCtx(ctx, s.log)
	report := &SweepReport{Scanned: len(pending)}
	for _, txn := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		expired := now.Sub(txn.CreatedAt) > cfg.ExpireAfter
		exhausted := txn.SubmissionStatus == types.SubmissionStatusExhausted

		if txn.HasProviderRef() && !exhausted {
			res, err := s.QueryAndApply(ctx, txn, models.TransactionChangeSourceSweep)
			switch {
			case err != nil:
				report.Failed++
				log.Warnw("sweep_query_failed", "transaction_id", txn.ID, "provider", txn.Provider, "err", err)
			case res.Changed:
				report.Settled++
			default:
				report.StillPending++
			}
			continue
		}

		if !expired {
			report.StillPending++
			continue
		}
		_, err := s.Apply(ctx, txn.ID, Outcome{
			Status: string(types.TransactionStatusCancelled),
			Source: models.TransactionChangeSourceSweep,
			Reason: expiredReason,
		})
		switch {
		case errors.Is(err, ErrConflict):
			// settled by a callback in the meantime
			report.StillPending++
		case err != nil:
			report.Failed++
			log.Warnw("sweep_expire_failed", "transaction_id", txn.ID, "err", err)
		default:
			report.Expired++
		}
	}

	log.Infow("reconcile_sweep_done", "scanned", report.Scanned, "settled", report.Settled,
		"expired", report.Expired, "still_pending", report.StillPending, "failed", report.Failed)
	return report, nil
}
