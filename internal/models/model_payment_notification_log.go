package models

import (
	"time"

	"github.com/fatflowers/storepay/pkg/types"
	"gorm.io/datatypes"
)

type PaymentNotificationLogStatus string

const (
	PaymentNotificationLogStatusReceived     PaymentNotificationLogStatus = "received"
	PaymentNotificationLogStatusHandled      PaymentNotificationLogStatus = "handled"
	PaymentNotificationLogStatusHandleFailed PaymentNotificationLogStatus = "handle_failed"
)

// PaymentNotificationLog stores every provider webhook as received, and how handling went.
type PaymentNotificationLog struct {
	ID       string                `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Provider types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	TraceID  string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	// ProviderRef is CheckoutRequestID or OrderTrackingId, when the payload parsed far enough.
	ProviderRef      string                       `gorm:"column:provider_ref;type:varchar(128);index:idx_notification_provider_ref" json:"provider_ref"`
	TransactionID    *string                      `gorm:"column:transaction_id;type:varchar(64)" json:"transaction_id"`
	NotificationTime time.Time                    `gorm:"column:notification_time" json:"notification_time"`
	Data             datatypes.JSON               `gorm:"column:data;type:jsonb" json:"data"`
	Result           *datatypes.JSON              `gorm:"column:result;type:jsonb" json:"result"`
	Status           PaymentNotificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

func (PaymentNotificationLog) TableName() string { return "payment_notification_log" }
