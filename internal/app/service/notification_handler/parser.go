package notification_handler

import (
	"context"
	"time"

	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/pkg/types"
)

// NotificationParser is one parsed provider webhook.
type NotificationParser interface {
	GetProvider(ctx context.Context) types.PaymentProvider
	GetNotificationTime(ctx context.Context) time.Time
	// GetProviderRef is the provider's id for the payment: CheckoutRequestID or OrderTrackingId.
	GetProviderRef(ctx context.Context) string
	GetData(ctx context.Context) any
	// Handle settles the transaction the notification refers to.
	Handle(ctx context.Context) (*reconcile.Result, error)
	// Ack is the response body the provider expects after handling finished with err.
	Ack(ctx context.Context, err error) any
}
