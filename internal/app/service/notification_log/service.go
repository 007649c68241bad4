package notification_log

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a payment notification log. Nil input is ignored.
// The write outlives the webhook request, so it does not inherit its cancellation.
func (s *Service) Save(ctx context.Context, entry *models.PaymentNotificationLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
		}
	}()
}

// ListByProviderRef returns the notifications received for one provider reference, oldest first.
func (s *Service) ListByProviderRef(ctx context.Context, provider types.PaymentProvider, ref string) ([]*models.PaymentNotificationLog, error) {
	var rows []*models.PaymentNotificationLog
	if err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_ref = ?", provider, ref).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	return rows, nil
}
