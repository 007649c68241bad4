package models

import (
	"fmt"
	"time"

	"github.com/fatflowers/storepay/pkg/types"
	"gorm.io/gorm"
)

// PendingOrderRefIndex guarantees at most one PENDING transaction per order ref.
const PendingOrderRefIndex = "uniq_transaction_pending_order_ref"

// Transaction is one payment attempt against an order (or a temporary order ref).
type Transaction struct {
	ID string `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	// OrderID is set once the transaction is bound to an order.
	OrderID *string `gorm:"column:order_id;type:varchar(64);index:idx_transaction_order_id" json:"order_id"`
	// TempOrderRef is the pay-first reference issued before the order exists.
	TempOrderRef *string `gorm:"column:temp_order_ref;type:varchar(64);index:idx_transaction_temp_order_ref" json:"temp_order_ref"`
	// OrderRef is OrderID or TempOrderRef at initiation time.
	OrderRef    string                `gorm:"column:order_ref;type:varchar(64);not null;index:uniq_transaction_pending_order_ref,unique,where:status = 'PENDING'" json:"order_ref"`
	Provider    types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:uniq_transaction_provider_ref,priority:1" json:"provider"`
	ProviderRef *string               `gorm:"column:provider_ref;type:varchar(128);uniqueIndex:uniq_transaction_provider_ref,priority:2" json:"provider_ref"`
	// MerchantRequestID is M-PESA only.
	MerchantRequestID *string                 `gorm:"column:merchant_request_id;type:varchar(128)" json:"merchant_request_id"`
	Phone             string                  `gorm:"column:phone;type:varchar(32)" json:"phone"`
	Amount            int64                   `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency          string                  `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status            types.TransactionStatus `gorm:"column:status;type:varchar(32);not null;index:idx_transaction_status_created,priority:1" json:"status"`
	SubmissionStatus  types.SubmissionStatus  `gorm:"column:submission_status;type:varchar(32);not null" json:"submission_status"`
	SubmitAttempts    int                     `gorm:"column:submit_attempts;not null;default:0" json:"submit_attempts"`
	LastError         *string                 `gorm:"column:last_error;type:text" json:"last_error"`
	// PaymentURL is the Pesapal redirect URL.
	PaymentURL    *string    `gorm:"column:payment_url;type:text" json:"payment_url"`
	ReceiptNumber *string    `gorm:"column:receipt_number;type:varchar(64)" json:"receipt_number"`
	ResultCode    *string    `gorm:"column:result_code;type:varchar(32)" json:"result_code"`
	ResultDesc    *string    `gorm:"column:result_desc;type:text" json:"result_desc"`
	Description   string     `gorm:"column:description;type:varchar(255)" json:"description"`
	CompletedAt   *time.Time `gorm:"column:completed_at;default:null" json:"completed_at"`
	CreatedAt     time.Time  `gorm:"index:idx_transaction_status_created,priority:2" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}

// BeforeSave canonicalises enum columns so the struct matches what is stored.
// Map updates run it on an empty model, so an empty Status is left for Value to reject on insert.
func (item *Transaction) BeforeSave(*gorm.DB) error {
	if item.Status != "" {
		status, err := types.ParseTransactionStatus(string(item.Status))
		if err != nil {
			return fmt.Errorf("transaction %s: %w", item.ID, err)
		}
		item.Status = status
	}

	if item.SubmissionStatus == "" {
		item.SubmissionStatus = types.SubmissionStatusNotSubmitted
	}
	submission, err := types.ParseSubmissionStatus(string(item.SubmissionStatus))
	if err != nil {
		return fmt.Errorf("transaction %s: %w", item.ID, err)
	}
	item.SubmissionStatus = submission
	return nil
}

// SetStatus accepts any casing or alias and stores the canonical value.
func (item *Transaction) SetStatus(raw string) error {
	status, err := types.ParseTransactionStatus(raw)
	if err != nil {
		return err
	}
	item.Status = status
	return nil
}

func (item *Transaction) IsPending() bool {
	return item != nil && item.Status == types.TransactionStatusPending
}

// HasProviderRef reports whether the gateway accepted the submission and returned a reference.
func (item *Transaction) HasProviderRef() bool {
	return item != nil && item.ProviderRef != nil && *item.ProviderRef != ""
}
