package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/pkg/amount"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/phone"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrOrderArchived = errors.New("order is archived")
	ErrInvalidOrder  = errors.New("invalid order")
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

type CreateOrderRequest struct {
	CustomerPhone string      `json:"customer_phone"`
	TotalAmount   json.Number `json:"total_amount" swaggertype:"number"`
	Currency      string      `json:"currency"`
}

// Create stores a new PENDING order awaiting payment.
func (s *Service) Create(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	total, err := amount.Positive(req.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	var customerPhone string
	if strings.TrimSpace(req.CustomerPhone) != "" {
		if customerPhone, err = phone.Canonical(req.CustomerPhone); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "KES"
	}

	o := &models.Order{
		ID:            tool.GenerateUUIDV7(),
		CustomerPhone: customerPhone,
		TotalAmount:   total,
		Currency:      currency,
		Status:        types.OrderStatusPending,
		PaymentStatus: types.PaymentStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("order_created", "order_id", o.ID, "total_amount", o.TotalAmount)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	return Find(s.db.WithContext(ctx), id)
}

// Find loads an order through db, which may be a transaction handle.
func Find(db *gorm.DB, id string) (*models.Order, error) {
	var o models.Order
	if err := db.Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

// Archive marks the order archived. It is one-way, and archiving twice returns the stored row.
func (s *Service) Archive(ctx context.Context, id string) (*models.Order, error) {
	var o *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND is_archived = ?", id, false).
			Updates(map[string]any{"is_archived": true, "archived_at": s.now()})
		if res.Error != nil {
			return fmt.Errorf("failed to archive order: %w", res.Error)
		}
		var err error
		o, err = Find(tx, id)
		if err != nil {
			return err
		}
		if res.RowsAffected > 0 {
			logctx.FromCtx(ctx, s.log).Infow("order_archived", "order_id", id)
		}
		return nil
	})
	return o, err
}

// ApplyTransactionStatus mirrors a transaction outcome onto its order inside tx.
// A paid order only moves again on a refund, so a stale failure cannot undo a payment.
// An operator override may demote it as long as no other completed transaction backs the payment.
func ApplyTransactionStatus(tx *gorm.DB, orderID string, status types.TransactionStatus, override bool) (*models.Order, error) {
	o, err := Find(tx, orderID)
	if err != nil {
		return nil, err
	}
	next := status.PaymentStatus()
	if o.PaymentStatus == next {
		return o, nil
	}

	updates := map[string]any{"payment_status": next}
	if o.PaymentStatus == types.PaymentStatusPaid && next != types.PaymentStatusRefunded {
		if !override {
			return o, nil
		}
		var completed int64
		if err := tx.Model(&models.Transaction{}).
			Where("order_id = ? AND UPPER(TRIM(status)) IN ?", orderID, types.TransactionStatusCompleted.Spellings()).
			Count(&completed).Error; err != nil {
			return nil, fmt.Errorf("failed to count completed transactions: %w", err)
		}
		if completed > 0 {
			return o, nil
		}
		if o.Status == types.OrderStatusConfirmed {
			updates["status"] = types.OrderStatusPending
		}
	}
	if status == types.TransactionStatusCompleted && o.Status == types.OrderStatusPending {
		updates["status"] = types.OrderStatusConfirmed
	}
	if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update order payment status: %w", err)
	}
	return Find(tx, orderID)
}

type BindResult struct {
	Order        *models.Order         `json:"order"`
	Transactions []*models.Transaction `json:"transactions"`
}

// BindTempRef attaches the transactions paid against a temporary reference to orderID and
// carries their outcome over to the order.
func (s *Service) BindTempRef(ctx context.Context, orderID, tempRef string) (*BindResult, error) {
	tempRef = strings.TrimSpace(tempRef)
	if !strings.HasPrefix(tempRef, tool.TempOrderRefPrefix) {
		return nil, fmt.Errorf("%w: not a temporary order reference: %q", ErrInvalidOrder, tempRef)
	}

	var out BindResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := Find(tx, orderID)
		if err != nil {
			return err
		}
		if o.IsArchived {
			return fmt.Errorf("%w: %s", ErrOrderArchived, orderID)
		}

		res := tx.Model(&models.Transaction{}).
			Where("temp_order_ref = ? AND order_id IS NULL", tempRef).
			Update("order_id", orderID)
		if res.Error != nil {
			return fmt.Errorf("failed to bind transactions: %w", res.Error)
		}

		if err := tx.Where("temp_order_ref = ? AND order_id = ?", tempRef, orderID).
			Order("created_at").Find(&out.Transactions).Error; err != nil {
			return fmt.Errorf("failed to load bound transactions: %w", err)
		}

		if status, ok := settledStatus(out.Transactions); ok {
			if o, err = ApplyTransactionStatus(tx, orderID, status, false); err != nil {
				return err
			}
		}
		out.Order = o

		logctx.FromCtx(ctx, s.log).Infow("temp_ref_bound", "order_id", orderID, "temp_order_ref", tempRef, "bound", res.RowsAffected)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// settledStatus picks the outcome the order should show: a completed payment wins,
// otherwise the latest terminal attempt.
func settledStatus(txns []*models.Transaction) (types.TransactionStatus, bool) {
	var latest types.TransactionStatus
	for _, t := range txns {
		if t.Status == types.TransactionStatusCompleted {
			return t.Status, true
		}
		if t.Status.IsTerminal() {
			latest = t.Status
		}
	}
	return latest, latest != ""
}
