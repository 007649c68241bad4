package models

import (
	"time"

	"github.com/fatflowers/storepay/pkg/types"
	"gorm.io/datatypes"
)

// TransactionChangeSource says what drove a status change.
type TransactionChangeSource string

const (
	TransactionChangeSourceInitiate TransactionChangeSource = "initiate"
	TransactionChangeSourceCallback TransactionChangeSource = "callback"
	TransactionChangeSourceQuery    TransactionChangeSource = "query"
	TransactionChangeSourceSweep    TransactionChangeSource = "sweep"
	TransactionChangeSourceAdmin    TransactionChangeSource = "admin"
	TransactionChangeSourceBind     TransactionChangeSource = "bind"
)

// TransactionLog records every status change of a transaction, for troubleshooting and audit.
type TransactionLog struct {
	ID            string                  `gorm:"column:id;primary_key;type:varchar(64)"`
	TransactionID string                  `gorm:"column:transaction_id;type:varchar(64);not null;index:idx_transaction_log_transaction_id"`
	OrderRef      string                  `gorm:"column:order_ref;type:varchar(64);not null"`
	FromStatus    types.TransactionStatus `gorm:"column:from_status;type:varchar(32);not null"`
	ToStatus      types.TransactionStatus `gorm:"column:to_status;type:varchar(32);not null"`
	Source        TransactionChangeSource `gorm:"column:source;type:varchar(32);not null"`
	// Operator is set for administrative overrides.
	Operator *string                          `gorm:"column:operator;type:varchar(64)"`
	Reason   string                           `gorm:"column:reason;type:varchar(255)"`
	Before   datatypes.JSONType[*Transaction] `gorm:"column:before;type:jsonb;default:'null'"`
	After    datatypes.JSONType[*Transaction] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra holds the raw provider fields that drove the change.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time         `json:"created_at"`
}

func (TransactionLog) TableName() string {
	return "transaction_log"
}
