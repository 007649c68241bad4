package mpesa

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatflowers/storepay/pkg/amount"
	"github.com/fatflowers/storepay/pkg/types"
)

// Result codes with a meaning of their own; anything else non-zero is a failure.
const (
	ResultSuccess         FlexString = "0"
	ResultCancelledByUser FlexString = "1032"
	ResultStillProcessing FlexString = "4999"
)

// StatusForResult maps a Daraja ResultCode onto the transaction status it settles.
func StatusForResult(code FlexString) types.TransactionStatus {
	switch code {
	case ResultSuccess:
		return types.TransactionStatusCompleted
	case ResultCancelledByUser:
		return types.TransactionStatusCancelled
	case ResultStillProcessing:
		return types.TransactionStatusPending
	default:
		return types.TransactionStatusFailed
	}
}

// CallbackEnvelope is the body Daraja posts to CallBackURL.
type CallbackEnvelope struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        FlexString        `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// ParseCallback decodes and sanity-checks a callback body.
func ParseCallback(raw []byte) (*StkCallback, error) {
	var env CallbackEnvelope
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("mpesa: decode callback: %w", err)
	}
	cb := env.Body.StkCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("mpesa: callback without CheckoutRequestID")
	}
	if cb.ResultCode == "" {
		return nil, fmt.Errorf("mpesa: callback %s without ResultCode", cb.CheckoutRequestID)
	}
	return cb, nil
}

func (cb *StkCallback) Status() types.TransactionStatus {
	return StatusForResult(cb.ResultCode)
}

func (cb *StkCallback) item(name string) (any, bool) {
	if cb.CallbackMetadata == nil {
		return nil, false
	}
	for _, it := range cb.CallbackMetadata.Item {
		if strings.EqualFold(it.Name, name) {
			return it.Value, it.Value != nil
		}
	}
	return nil, false
}

func (cb *StkCallback) itemString(name string) string {
	v, ok := cb.item(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// ReceiptNumber is MpesaReceiptNumber, present on success only.
func (cb *StkCallback) ReceiptNumber() string { return cb.itemString("MpesaReceiptNumber") }

// Phone is the paying number as reported by Daraja.
func (cb *StkCallback) Phone() string { return cb.itemString("PhoneNumber") }

// Amount is the paid amount in whole units, when reported.
func (cb *StkCallback) Amount() (int64, bool) {
	v, ok := cb.item("Amount")
	if !ok {
		return 0, false
	}
	n, err := amount.Format(v)
	return n, err == nil
}
