package types

import (
	"database/sql/driver"

	"github.com/samber/lo"
)

// TransactionStatus is the lifecycle state of one payment attempt.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
	TransactionStatusRefunded  TransactionStatus = "REFUNDED"
)

var transactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusCancelled,
	TransactionStatusRefunded,
}

var transactionStatusAliases = map[string]TransactionStatus{
	"PAID":     TransactionStatusCompleted,
	"SUCCESS":  TransactionStatusCompleted,
	"CANCELED": TransactionStatusCancelled,
	"REVERSED": TransactionStatusRefunded,
}

// ParseTransactionStatus accepts any casing and the historical aliases (PAID, CANCELED ...).
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	return parseEnum("transaction status", raw, transactionStatuses, transactionStatusAliases)
}

// Valid reports whether s is already in canonical form.
func (s TransactionStatus) Valid() bool {
	return lo.Contains(transactionStatuses, s)
}

func (s TransactionStatus) IsTerminal() bool {
	return s != TransactionStatusPending
}

// CanTransitionTo reports whether a non-administrative update from s to next is allowed.
// PENDING moves to any terminal state; COMPLETED may still be reversed into REFUNDED.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next != TransactionStatusPending
	case TransactionStatusCompleted:
		return next == TransactionStatusRefunded
	default:
		return false
	}
}

// PaymentStatus mirrors the transaction outcome onto the order.
func (s TransactionStatus) PaymentStatus() PaymentStatus {
	switch s {
	case TransactionStatusCompleted:
		return PaymentStatusPaid
	case TransactionStatusFailed:
		return PaymentStatusFailed
	case TransactionStatusCancelled:
		return PaymentStatusCancelled
	case TransactionStatusRefunded:
		return PaymentStatusRefunded
	default:
		return PaymentStatusPending
	}
}

func (s TransactionStatus) Value() (driver.Value, error) {
	return valueEnum(s, ParseTransactionStatus)
}

func (s *TransactionStatus) Scan(src any) error {
	return scanEnum(s, src, ParseTransactionStatus)
}

func (s *TransactionStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, ParseTransactionStatus)
}

// PaymentStatus is the order-level view of payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
}

var paymentStatusAliases = map[string]PaymentStatus{
	"COMPLETED": PaymentStatusPaid,
	"CANCELED":  PaymentStatusCancelled,
	"UNPAID":    PaymentStatusPending,
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	return parseEnum("payment status", raw, paymentStatuses, paymentStatusAliases)
}

func (s PaymentStatus) Valid() bool {
	return lo.Contains(paymentStatuses, s)
}

func (s PaymentStatus) Value() (driver.Value, error) {
	return valueEnum(s, ParsePaymentStatus)
}

func (s *PaymentStatus) Scan(src any) error {
	return scanEnum(s, src, ParsePaymentStatus)
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, ParsePaymentStatus)
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderStatusAliases = map[string]OrderStatus{
	"CANCELED": OrderStatusCancelled,
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	return parseEnum("order status", raw, orderStatuses, orderStatusAliases)
}

func (s OrderStatus) Valid() bool {
	return lo.Contains(orderStatuses, s)
}

func (s OrderStatus) Value() (driver.Value, error) {
	return valueEnum(s, ParseOrderStatus)
}

func (s *OrderStatus) Scan(src any) error {
	return scanEnum(s, src, ParseOrderStatus)
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, ParseOrderStatus)
}

// SubmissionStatus tracks whether the push request reached the provider. EXHAUSTED means
// every retry failed; the transaction itself stays PENDING until reconciled.
type SubmissionStatus string

const (
	SubmissionStatusNotSubmitted SubmissionStatus = "NOT_SUBMITTED"
	SubmissionStatusSubmitted    SubmissionStatus = "SUBMITTED"
	SubmissionStatusExhausted    SubmissionStatus = "EXHAUSTED"
)

var submissionStatuses = []SubmissionStatus{
	SubmissionStatusNotSubmitted,
	SubmissionStatusSubmitted,
	SubmissionStatusExhausted,
}

func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	return parseEnum("submission status", raw, submissionStatuses, nil)
}

func (s SubmissionStatus) Value() (driver.Value, error) {
	return valueEnum(s, ParseSubmissionStatus)
}

func (s *SubmissionStatus) Scan(src any) error {
	return scanEnum(s, src, ParseSubmissionStatus)
}

func (s *SubmissionStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, ParseSubmissionStatus)
}
