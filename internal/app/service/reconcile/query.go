package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/mpesa"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
	"github.com/fatflowers/storepay/pkg/types"
)

type MpesaQuerier interface {
	StkQuery(ctx context.Context, checkoutRequestID string) (*mpesa.StkQueryResult, error)
}

type PesapalQuerier interface {
	GetTransactionStatus(ctx context.Context, orderTrackingID string) (*pesapal.TransactionStatusResult, error)
}

// ErrNoProviderRef means the provider never acknowledged the transaction, so there is nothing to ask.
var ErrNoProviderRef = errors.New("transaction has no provider reference")

// QueryOutcome asks the provider where txn stands. A PENDING status means "not settled yet".
func (s *Service) QueryOutcome(ctx context.Context, txn *models.Transaction, source models.TransactionChangeSource) (Outcome, error) {
	if !txn.HasProviderRef() {
		return Outcome{}, ErrNoProviderRef
	}
	ref := *txn.ProviderRef

	switch txn.Provider {
	case types.PaymentProviderMpesa:
		res, err := s.mpesa.StkQuery(ctx, ref)
		if errors.Is(err, mpesa.ErrStillProcessing) {
			return Outcome{Status: string(types.TransactionStatusPending), Source: source}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Status:     string(mpesa.StatusForResult(res.ResultCode)),
			Source:     source,
			ResultCode: string(res.ResultCode),
			ResultDesc: res.ResultDesc,
			Extra:      map[string]any{"checkout_request_id": res.CheckoutRequestID},
		}, nil
	case types.PaymentProviderPesapal:
		res, err := s.pesapal.GetTransactionStatus(ctx, ref)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Status:        string(res.TransactionStatus()),
			Source:        source,
			ReceiptNumber: res.ConfirmationCode,
			ResultCode:    fmt.Sprint(res.StatusCode),
			ResultDesc:    res.PaymentStatusDescription,
			Extra: map[string]any{
				"payment_method":  res.PaymentMethod,
				"payment_account": res.PaymentAccount,
				"amount":          res.Amount,
			},
		}, nil
	default:
		return Outcome{}, fmt.Errorf("unsupported provider: %s", txn.Provider)
	}
}

// QueryAndApply asks the provider and applies a settled answer. A still-pending answer changes nothing.
func (s *Service) QueryAndApply(ctx context.Context, txn *models.Transaction, source models.TransactionChangeSource) (*Result, error) {
	out, err := s.QueryOutcome(ctx, txn, source)
	if err != nil {
		return nil, err
	}
	if out.Status == string(types.TransactionStatusPending) {
		return &Result{Transaction: txn, Previous: txn.Status}, nil
	}
	return s.Apply(ctx, txn.ID, out)
}
