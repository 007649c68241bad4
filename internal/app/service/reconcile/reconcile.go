package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/kafka"
	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/metrics"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("invalid transaction status transition")
	ErrInvalidOutcome    = errors.New("invalid outcome")
	// ErrConflict means the row changed underneath us, or the change would create a second PENDING attempt.
	ErrConflict = errors.New("transaction changed concurrently")
)

// Outcome is a reported result for one transaction: from a provider callback, a status query,
// the sweep, or an operator.
type Outcome struct {
	// Status may be any casing or alias; it is stored canonical.
	Status string
	Source models.TransactionChangeSource
	// Override lets an operator leave a terminal state. Operator and Reason are then required.
	Override bool
	Operator string
	Reason   string

	ReceiptNumber string
	ResultCode    string
	ResultDesc    string
	Extra         map[string]any
}

// Result describes what applying an Outcome did.
type Result struct {
	Transaction *models.Transaction     `json:"transaction"`
	Order       *models.Order           `json:"order,omitempty"`
	Previous    types.TransactionStatus `json:"previous_status"`
	Changed     bool                    `json:"changed"`
}

type Service struct {
	cfg       *config.Config
	db        *gorm.DB
	log       *zap.SugaredLogger
	publisher kafka.Publisher
	mpesa     MpesaQuerier
	pesapal   PesapalQuerier
	now       func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, publisher kafka.Publisher, mp MpesaQuerier, pp PesapalQuerier) *Service {
	return &Service{cfg: cfg, db: db, log: log, publisher: publisher, mpesa: mp, pesapal: pp, now: time.Now}
}

// Apply settles transaction id with out and propagates the result to the bound order,
// all in one database transaction. Re-applying the current status is a no-op.
func (s *Service) Apply(ctx context.Context, id string, out Outcome) (*Result, error) {
	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.ApplyTx(ctx, tx, id, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Publish(ctx, res, out.Source)
	return res, nil
}

// FindByProviderRef loads the transaction a provider knows as ref.
func (s *Service) FindByProviderRef(ctx context.Context, provider types.PaymentProvider, ref string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).Where("provider = ? AND provider_ref = ?", provider, ref).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, provider, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return &txn, nil
}

// normaliseStatus rewrites a legacy spelling of status in place without logging a change.
// A legacy PENDING row keeps its spelling while another PENDING row holds the partial index.
func normaliseStatus(tx *gorm.DB, cur *models.Transaction, status types.TransactionStatus) error {
	q := tx.Model(&models.Transaction{}).Where("id = ? AND status <> ?", cur.ID, status)
	if status == types.TransactionStatusPending {
		held := tx.Session(&gorm.Session{NewDB: true}).Model(&models.Transaction{}).Select("1").
			Where("order_ref = ? AND status = ? AND id <> ?", cur.OrderRef, status, cur.ID)
		q = q.Where("NOT EXISTS (?)", held)
	}
	if err := q.UpdateColumn("status", status).Error; err != nil {
		return fmt.Errorf("failed to normalise transaction status: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return findTx(s.db.WithContext(ctx), id)
}

func findTx(tx *gorm.DB, id string) (*models.Transaction, error) {
	var txn models.Transaction
	err := tx.Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

// ApplyTx is Apply inside a caller-owned transaction. The caller publishes after commit.
func (s *Service) ApplyTx(ctx context.Context, tx *gorm.DB, id string, out Outcome) (*Result, error) {
	next, err := types.ParseTransactionStatus(out.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutcome, err)
	}
	if out.Override && (strings.TrimSpace(out.Operator) == "" || strings.TrimSpace(out.Reason) == "") {
		return nil, fmt.Errorf("%w: override needs operator and reason", ErrInvalidOutcome)
	}

	cur, err := findTx(tx, id)
	if err != nil {
		return nil, err
	}
	res := &Result{Transaction: cur, Previous: cur.Status}
	if cur.Status == next {
		if err := normaliseStatus(tx, cur, next); err != nil {
			return nil, err
		}
		return res, nil
	}
	if !out.Override && !cur.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, cur.Status, next, id)
	}

	now := s.now()
	updates := map[string]any{"status": next, "updated_at": now}
	if next == types.TransactionStatusCompleted {
		updates["completed_at"] = now
	}
	if out.ReceiptNumber != "" {
		updates["receipt_number"] = out.ReceiptNumber
	}
	if out.ResultCode != "" {
		updates["result_code"] = out.ResultCode
	}
	if out.ResultDesc != "" {
		updates["result_desc"] = out.ResultDesc
	}

	// legacy rows may still hold a lowercase or alias spelling
	upd := tx.Model(&models.Transaction{}).
		Where("id = ? AND UPPER(TRIM(status)) IN ?", cur.ID, cur.Status.Spellings()).
		Updates(updates)
	if upd.Error != nil {
		if isDuplicate(upd.Error) {
			return nil, fmt.Errorf("%w: another PENDING transaction exists for %s", ErrConflict, cur.OrderRef)
		}
		return nil, fmt.Errorf("failed to update transaction status: %w", upd.Error)
	}
	if upd.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrConflict, id)
	}

	after, err := findTx(tx, id)
	if err != nil {
		return nil, err
	}
	res.Transaction, res.Changed = after, true

	if after.OrderID != nil {
		if res.Order, err = order.ApplyTransactionStatus(tx, *after.OrderID, next, out.Override); err != nil {
			return nil, fmt.Errorf("failed to propagate status to order: %w", err)
		}
	}

	entry := &models.TransactionLog{
		ID:            tool.GenerateUUIDV7(),
		TransactionID: after.ID,
		OrderRef:      after.OrderRef,
		FromStatus:    cur.Status,
		ToStatus:      next,
		Source:        out.Source,
		Reason:        out.Reason,
		Before:        datatypes.NewJSONType(cur),
		After:         datatypes.NewJSONType(after),
		Extra:         datatypes.JSONMap(lo.Assign(map[string]any{}, out.Extra)),
	}
	if out.Operator != "" {
		entry.Operator = lo.ToPtr(out.Operator)
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to write transaction log: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("transaction_status_changed",
		"transaction_id", after.ID, "order_ref", after.OrderRef,
		"from", cur.Status, "to", next, "source", out.Source, "override", out.Override)
	return res, nil
}

// Publish emits the status-changed event for a committed change. Failures are logged only.
func (s *Service) Publish(ctx context.Context, res *Result, source models.TransactionChangeSource) {
	if res == nil || !res.Changed {
		return
	}
	txn := res.Transaction
	metrics.IncReconciliation(string(source), string(txn.Status))

	event := kafka.TransactionStatusChanged{
		Event:          kafka.EventTransactionStatusChanged,
		TransactionID:  txn.ID,
		OrderID:        txn.OrderID,
		OrderRef:       txn.OrderRef,
		Provider:       txn.Provider,
		ProviderRef:    txn.ProviderRef,
		Status:         txn.Status,
		PreviousStatus: res.Previous,
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		Source:         string(source),
		OccurredAt:     txn.UpdatedAt,
	}
	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("payment_event_publish_failed", "transaction_id", txn.ID, "err", err)
	}
}

type OverrideRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Status        string `json:"status" binding:"required"`
	Operator      string `json:"operator" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

// Override is the administrative path out of a terminal state. It is always logged with operator and reason.
func (s *Service) Override(ctx context.Context, req *OverrideRequest) (*Result, error) {
	return s.Apply(ctx, req.TransactionID, Outcome{
		Status:   req.Status,
		Source:   models.TransactionChangeSourceAdmin,
		Override: true,
		Operator: req.Operator,
		Reason:   req.Reason,
	})
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
