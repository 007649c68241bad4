package kafka

import (
	"time"

	"github.com/fatflowers/storepay/pkg/types"
)

const EventTransactionStatusChanged = "payment.transaction.status_changed"

// TransactionStatusChanged is published after a status change is committed.
type TransactionStatusChanged struct {
	Event          string                  `json:"event"`
	TransactionID  string                  `json:"transaction_id"`
	OrderID        *string                 `json:"order_id"`
	OrderRef       string                  `json:"order_ref"`
	Provider       types.PaymentProvider   `json:"provider"`
	ProviderRef    *string                 `json:"provider_ref,omitempty"`
	Status         types.TransactionStatus `json:"status"`
	PreviousStatus types.TransactionStatus `json:"previous_status"`
	Amount         int64                   `json:"amount"`
	Currency       string                  `json:"currency"`
	Source         string                  `json:"source"`
	OccurredAt     time.Time               `json:"occurred_at"`
}
