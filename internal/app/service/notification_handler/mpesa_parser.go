package notification_handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/mpesa"
	"github.com/fatflowers/storepay/pkg/types"
)

// MpesaAck is the body Daraja expects from the callback URL.
type MpesaAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var (
	mpesaAccepted = MpesaAck{ResultCode: 0, ResultDesc: "Accepted"}
	mpesaRejected = MpesaAck{ResultCode: 1, ResultDesc: "Rejected"}
)

type MpesaNotificationParser struct {
	rec              *reconcile.Service
	signer           *payment.CallbackSigner
	NotificationTime time.Time
	Callback         *mpesa.StkCallback
	Token            string
}

func GetMpesaNotificationParser(c *gin.Context, rec *reconcile.Service, signer *payment.CallbackSigner, now time.Time) (*MpesaNotificationParser, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read callback body: %w", err)
	}
	c.Set(gin.BodyBytesKey, raw)
	cb, err := mpesa.ParseCallback(raw)
	if err != nil {
		return nil, err
	}
	return &MpesaNotificationParser{
		rec:              rec,
		signer:           signer,
		NotificationTime: now,
		Callback:         cb,
		Token:            c.Query(payment.CallbackTokenParam),
	}, nil
}

func (p *MpesaNotificationParser) GetProvider(ctx context.Context) types.PaymentProvider {
	return types.PaymentProviderMpesa
}

func (p *MpesaNotificationParser) GetNotificationTime(ctx context.Context) time.Time {
	return p.NotificationTime
}

func (p *MpesaNotificationParser) GetProviderRef(ctx context.Context) string {
	return p.Callback.CheckoutRequestID
}

func (p *MpesaNotificationParser) GetData(ctx context.Context) any {
	return p.Callback
}

func (p *MpesaNotificationParser) Handle(ctx context.Context) (*reconcile.Result, error) {
	cb := p.Callback
	txn, err := p.rec.FindByProviderRef(ctx, types.PaymentProviderMpesa, cb.CheckoutRequestID)
	orphaned := false
	if errors.Is(err, reconcile.ErrNotFound) && p.Token != "" && p.signer.Enabled() {
		// a push retried after a timeout leaves the first checkout id unrecorded
		txn, err = p.fromToken(ctx)
		orphaned = err == nil
	}
	if err != nil {
		return nil, err
	}
	if err := p.signer.Verify(p.Token, txn.ID); err != nil {
		return nil, err
	}

	extra := map[string]any{
		"merchant_request_id": cb.MerchantRequestID,
		"phone":               cb.Phone(),
	}
	if orphaned {
		// only a payment is taken from an earlier push; the recorded one decides anything else
		if cb.Status() != types.TransactionStatusCompleted {
			return &reconcile.Result{Transaction: txn, Previous: txn.Status}, nil
		}
		extra["orphaned_checkout_request_id"] = cb.CheckoutRequestID
	}
	if paid, ok := cb.Amount(); ok {
		extra["amount"] = paid
		if paid != txn.Amount {
			extra["amount_mismatch"] = true
		}
	}
	return p.rec.Apply(ctx, txn.ID, reconcile.Outcome{
		Status:        string(cb.Status()),
		Source:        models.TransactionChangeSourceCallback,
		ReceiptNumber: cb.ReceiptNumber(),
		ResultCode:    string(cb.ResultCode),
		ResultDesc:    cb.ResultDesc,
		Extra:         extra,
	})
}

func (p *MpesaNotificationParser) fromToken(ctx context.Context) (*models.Transaction, error) {
	id, err := p.signer.Subject(p.Token)
	if err != nil {
		return nil, err
	}
	txn, err := p.rec.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Provider != types.PaymentProviderMpesa {
		return nil, fmt.Errorf("%w: %s is not an M-PESA transaction", reconcile.ErrNotFound, id)
	}
	return txn, nil
}

// Ack accepts everything except a callback carrying a bad token. Unknown transactions and
// outcomes that cannot be applied are accepted too: Daraja would only redeliver them.
func (p *MpesaNotificationParser) Ack(ctx context.Context, err error) any {
	return lo.Ternary(errors.Is(err, payment.ErrInvalidCallbackToken), mpesaRejected, mpesaAccepted)
}
