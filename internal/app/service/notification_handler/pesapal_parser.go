package notification_handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
	"github.com/fatflowers/storepay/pkg/types"
)

var ErrMerchantReferenceMismatch = errors.New("pesapal: merchant reference does not match transaction")

// PesapalNotificationParser handles an IPN. The IPN only says "something changed", so the
// status is always fetched from Pesapal before anything is applied.
type PesapalNotificationParser struct {
	rec              *reconcile.Service
	NotificationTime time.Time
	IPN              *pesapal.IPN
}

func GetPesapalNotificationParser(c *gin.Context, rec *reconcile.Service, now time.Time) (*PesapalNotificationParser, error) {
	ipn := pesapal.IPNFromQuery(c.Request.URL.Query())
	if c.Request.Method == http.MethodPost {
		ipn = &pesapal.IPN{}
		if err := c.ShouldBindBodyWith(ipn, binding.JSON); err != nil {
			return nil, fmt.Errorf("pesapal: decode ipn: %w", err)
		}
	}
	if err := ipn.Validate(); err != nil {
		return nil, err
	}
	return &PesapalNotificationParser{rec: rec, NotificationTime: now, IPN: ipn}, nil
}

func (p *PesapalNotificationParser) GetProvider(ctx context.Context) types.PaymentProvider {
	return types.PaymentProviderPesapal
}

func (p *PesapalNotificationParser) GetNotificationTime(ctx context.Context) time.Time {
	return p.NotificationTime
}

func (p *PesapalNotificationParser) GetProviderRef(ctx context.Context) string {
	return p.IPN.OrderTrackingID
}

func (p *PesapalNotificationParser) GetData(ctx context.Context) any {
	return p.IPN
}

func (p *PesapalNotificationParser) Handle(ctx context.Context) (*reconcile.Result, error) {
	txn, err := p.rec.FindByProviderRef(ctx, types.PaymentProviderPesapal, p.IPN.OrderTrackingID)
	if err != nil {
		return nil, err
	}
	if ref := p.IPN.OrderMerchantReference; ref != "" && ref != txn.ID {
		return nil, fmt.Errorf("%w: %s != %s", ErrMerchantReferenceMismatch, ref, txn.ID)
	}
	return p.rec.QueryAndApply(ctx, txn, models.TransactionChangeSourceCallback)
}

// Ack asks Pesapal to redeliver only when the failure may go away: a failed status query or a
// database error. Unknown or inapplicable notifications are acknowledged.
func (p *PesapalNotificationParser) Ack(ctx context.Context, err error) any {
	switch {
	case err == nil,
		errors.Is(err, reconcile.ErrNotFound),
		errors.Is(err, reconcile.ErrInvalidTransition),
		errors.Is(err, ErrMerchantReferenceMismatch):
		return p.IPN.Ack(http.StatusOK)
	default:
		return p.IPN.Ack(http.StatusInternalServerError)
	}
}
