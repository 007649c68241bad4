package models

import (
	"fmt"
	"time"

	"github.com/fatflowers/storepay/pkg/types"
	"gorm.io/gorm"
)

// Order carries only the fields the payment flow reads or writes.
type Order struct {
	ID            string              `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	CustomerPhone string              `gorm:"column:customer_phone;type:varchar(32)" json:"customer_phone"`
	TotalAmount   int64               `gorm:"column:total_amount;type:bigint;not null" json:"total_amount"`
	Currency      string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status        types.OrderStatus   `gorm:"column:status;type:varchar(32);not null;index:idx_order_status" json:"status"`
	PaymentStatus types.PaymentStatus `gorm:"column:payment_status;type:varchar(32);not null" json:"payment_status"`
	// IsArchived is one-way; archived orders cannot start new payments.
	IsArchived bool       `gorm:"column:is_archived;not null;default:false" json:"is_archived"`
	ArchivedAt *time.Time `gorm:"column:archived_at;default:null" json:"archived_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Order) TableName() string {
	return "order"
}

func (o *Order) BeforeSave(*gorm.DB) error {
	if o.Status == "" {
		o.Status = types.OrderStatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = types.PaymentStatusPending
	}
	status, err := types.ParseOrderStatus(string(o.Status))
	if err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	paymentStatus, err := types.ParsePaymentStatus(string(o.PaymentStatus))
	if err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status, o.PaymentStatus = status, paymentStatus
	return nil
}
