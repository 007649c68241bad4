package notification_handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	notificationlog "github.com/fatflowers/storepay/internal/app/service/notification_log"
	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/types"
)

type NotificationHandler struct {
	notifSvc *notificationlog.Service
	rec      *reconcile.Service
	signer   *payment.CallbackSigner
	Logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewNotificationHandler(notif *notificationlog.Service, rec *reconcile.Service, signer *payment.CallbackSigner, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{notifSvc: notif, rec: rec, signer: signer, Logger: log, now: time.Now}
}

func (h *NotificationHandler) parser(c *gin.Context, provider types.PaymentProvider) (NotificationParser, error) {
	switch provider {
	case types.PaymentProviderMpesa:
		return GetMpesaNotificationParser(c, h.rec, h.signer, h.now())
	case types.PaymentProviderPesapal:
		return GetPesapalNotificationParser(c, h.rec, h.now())
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// HandleNotification logs, applies and acknowledges one provider webhook. It returns the body to
// send back to the provider, and the handling error for the caller's own logging.
func (h *NotificationHandler) HandleNotification(c *gin.Context, provider types.PaymentProvider) (ack any, resErr error) {
	ctx := c.Request.Context()
	log := logctx.FromGin(c, h.Logger)
	traceID := logctx.TraceID(ctx)

	parser, err := h.parser(c, provider)
	if err != nil {
		log.Warnw("notification_rejected", "provider", provider, "error", err.Error())
		h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
			Provider:         provider,
			TraceID:          traceID,
			NotificationTime: h.now(),
			Data:             rawBody(c),
			Result:           resultJSON(nil, err),
			Status:           models.PaymentNotificationLogStatusHandleFailed,
		})
		return rejectAck(provider), err
	}

	dataBytes, _ := json.Marshal(parser.GetData(ctx))
	providerRef := parser.GetProviderRef(ctx)

	// Save 'received' log
	h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
		Provider:         provider,
		TraceID:          traceID,
		ProviderRef:      providerRef,
		NotificationTime: parser.GetNotificationTime(ctx),
		Data:             datatypes.JSON(dataBytes),
		Status:           models.PaymentNotificationLogStatusReceived,
	})

	var res *reconcile.Result
	defer func() {
		status := models.PaymentNotificationLogStatusHandled
		if resErr != nil {
			status = models.PaymentNotificationLogStatusHandleFailed
		}
		entry := &models.PaymentNotificationLog{
			Provider:         provider,
			TraceID:          traceID,
			ProviderRef:      providerRef,
			NotificationTime: h.now(),
			Data:             datatypes.JSON(dataBytes),
			Result:           resultJSON(res, resErr),
			Status:           status,
		}
		if res != nil && res.Transaction != nil {
			entry.TransactionID = lo.ToPtr(res.Transaction.ID)
		}
		h.notifSvc.Save(ctx, entry)
		ack = parser.Ack(ctx, resErr)
	}()

	res, resErr = parser.Handle(ctx)
	if resErr != nil {
		log.Errorw("failed to handle notification", "provider", provider, "provider_ref", providerRef, "error", resErr.Error())
		return nil, resErr
	}

	log.Infow("notification handled", "provider", provider, "provider_ref", providerRef,
		"transaction_id", res.Transaction.ID, "status", res.Transaction.Status, "changed", res.Changed)
	return nil, nil
}

func resultJSON(res *reconcile.Result, err error) *datatypes.JSON {
	resMap := map[string]any{}
	if res != nil {
		resMap["transaction"] = res.Transaction
		resMap["changed"] = res.Changed
		resMap["previous_status"] = res.Previous
	}
	if err != nil {
		resMap["error"] = err.Error()
	}
	resBytes, _ := json.Marshal(resMap)
	j := datatypes.JSON(resBytes)
	return &j
}

// rawBody keeps an unparsable payload for troubleshooting, as a JSON string.
func rawBody(c *gin.Context) datatypes.JSON {
	var raw []byte
	if cached, ok := c.Get(gin.BodyBytesKey); ok {
		raw, _ = cached.([]byte)
	} else if c.Request.Body != nil {
		raw, _ = io.ReadAll(c.Request.Body)
	}
	b, _ := json.Marshal(map[string]string{"query": c.Request.URL.RawQuery, "body": string(raw)})
	return datatypes.JSON(b)
}

func rejectAck(provider types.PaymentProvider) any {
	if provider == types.PaymentProviderPesapal {
		return &pesapal.IPNAck{Status: http.StatusInternalServerError}
	}
	return mpesaRejected
}
