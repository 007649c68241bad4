package notification_handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	notificationlog "github.com/fatflowers/storepay/internal/app/service/notification_log"
	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/db/dbtest"
	"github.com/fatflowers/storepay/internal/platform/kafka"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

type fakePesapal struct {
	res *pesapal.TransactionStatusResult
	err error
}

func (f *fakePesapal) GetTransactionStatus(context.Context, string) (*pesapal.TransactionStatusResult, error) {
	return f.res, f.err
}

type fixture struct {
	h       *NotificationHandler
	db      *gorm.DB
	signer  *payment.CallbackSigner
	pesapal *fakePesapal
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	gdb := dbtest.NewSQLite(t)
	l := zap.NewNop().Sugar()
	cfg := &config.Config{Callback: config.CallbackConfig{BaseURL: "https://shop.example.com", Secret: "s3cret", TokenTTL: time.Hour}}
	f := &fixture{db: gdb, signer: payment.NewCallbackSigner(cfg), pesapal: &fakePesapal{}}
	rec := reconcile.NewService(cfg, gdb, l, kafka.NewLogPublisher(l), nil, f.pesapal)
	f.h = NewNotificationHandler(notificationlog.New(gdb, l), rec, f.signer, l)
	return f
}

func (f *fixture) txn(t *testing.T, provider types.PaymentProvider, ref string) *models.Transaction {
	txn := &models.Transaction{
		ID:          tool.GenerateUUIDV7(),
		OrderRef:    tool.GenerateTempOrderRef(),
		Provider:    provider,
		ProviderRef: lo.ToPtr(ref),
		Phone:       "254712345678",
		Amount:      100,
		Currency:    "KES",
		Status:      types.TransactionStatusPending,
	}
	require.NoError(t, f.db.Create(txn).Error)
	return txn
}

func (f *fixture) reload(t *testing.T, id string) *models.Transaction {
	var txn models.Transaction
	require.NoError(t, f.db.Where("id = ?", id).First(&txn).Error)
	return &txn
}

func (f *fixture) waitForLogs(t *testing.T, ref string, status models.PaymentNotificationLogStatus) {
	require.Eventually(t, func() bool {
		var n int64
		f.db.Model(&models.PaymentNotificationLog{}).Where("provider_ref = ? AND status = ?", ref, status).Count(&n)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func serve(method, target, body string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

const successCallback = `{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925",
"ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[
{"Name":"Amount","Value":100},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254712345678}]}}}}`

func TestMpesaCallbackCompletesTransaction(t *testing.T) {
	f := newFixture(t)
	txn := f.txn(t, types.PaymentProviderMpesa, "ws_CO_191220191020363925")
	token, err := f.signer.Sign(txn.ID)
	require.NoError(t, err)

	ack, err := f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath+"?token="+token, successCallback), types.PaymentProviderMpesa)
	require.NoError(t, err)
	require.Equal(t, mpesaAccepted, ack)

	got := f.reload(t, txn.ID)
	require.Equal(t, types.TransactionStatusCompleted, got.Status)
	require.Equal(t, "NLJ7RT61SV", lo.FromPtr(got.ReceiptNumber))
	require.Equal(t, "0", lo.FromPtr(got.ResultCode))

	f.waitForLogs(t, "ws_CO_191220191020363925", models.PaymentNotificationLogStatusReceived)
	f.waitForLogs(t, "ws_CO_191220191020363925", models.PaymentNotificationLogStatusHandled)

	// Daraja redelivers; the second delivery changes nothing and is still accepted
	ack, err = f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath+"?token="+token, successCallback), types.PaymentProviderMpesa)
	require.NoError(t, err)
	require.Equal(t, mpesaAccepted, ack)
}

func TestMpesaCallbackCancelledByUser(t *testing.T) {
	f := newFixture(t)
	txn := f.txn(t, types.PaymentProviderMpesa, "ws_CO_cancel")
	token, err := f.signer.Sign(txn.ID)
	require.NoError(t, err)

	body := `{"Body":{"stkCallback":{"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_cancel","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	_, err = f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath+"?token="+token, body), types.PaymentProviderMpesa)
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusCancelled, f.reload(t, txn.ID).Status)
}

func TestMpesaCallbackRejections(t *testing.T) {
	f := newFixture(t)
	txn := f.txn(t, types.PaymentProviderMpesa, "ws_CO_191220191020363925")
	other, err := f.signer.Sign("another-transaction")
	require.NoError(t, err)

	ack, err := f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath+"?token="+other, successCallback), types.PaymentProviderMpesa)
	require.ErrorIs(t, err, payment.ErrInvalidCallbackToken)
	require.Equal(t, mpesaRejected, ack)
	require.Equal(t, types.TransactionStatusPending, f.reload(t, txn.ID).Status)
	f.waitForLogs(t, "ws_CO_191220191020363925", models.PaymentNotificationLogStatusHandleFailed)

	ack, err = f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath, `{"Body":{}}`), types.PaymentProviderMpesa)
	require.Error(t, err)
	require.Equal(t, mpesaRejected, ack)
}

func TestMpesaCallbackForUnknownTransactionIsAccepted(t *testing.T) {
	f := newFixture(t)
	ack, err := f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath, successCallback), types.PaymentProviderMpesa)
	require.ErrorIs(t, err, reconcile.ErrNotFound)
	require.Equal(t, mpesaAccepted, ack)
	f.waitForLogs(t, "ws_CO_191220191020363925", models.PaymentNotificationLogStatusHandleFailed)
}

func TestMpesaCallbackForOrphanedCheckoutUsesToken(t *testing.T) {
	f := newFixture(t)
	// the retried push is the one on record; Daraja answers for the first
	txn := f.txn(t, types.PaymentProviderMpesa, "ws_CO_retry")
	token, err := f.signer.Sign(txn.ID)
	require.NoError(t, err)

	cancelled := `{"Body":{"stkCallback":{"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_first","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	ack, err := f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath+"?token="+token, cancelled), types.PaymentProviderMpesa)
	require.NoError(t, err)
	require.Equal(t, mpesaAccepted, ack)
	require.Equal(t, types.TransactionStatusPending, f.reload(t, txn.ID).Status)

	ack, err = f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath+"?token="+token, successCallback), types.PaymentProviderMpesa)
	require.NoError(t, err)
	require.Equal(t, mpesaAccepted, ack)

	got := f.reload(t, txn.ID)
	require.Equal(t, types.TransactionStatusCompleted, got.Status)
	require.Equal(t, "NLJ7RT61SV", lo.FromPtr(got.ReceiptNumber))
	require.Equal(t, "ws_CO_retry", lo.FromPtr(got.ProviderRef))

	var entry models.TransactionLog
	require.NoError(t, f.db.Where("transaction_id = ?", txn.ID).First(&entry).Error)
	require.Equal(t, "ws_CO_191220191020363925", entry.Extra["orphaned_checkout_request_id"])
}

func TestMpesaCallbackForOrphanedCheckoutNeedsValidToken(t *testing.T) {
	f := newFixture(t)
	card := f.txn(t, types.PaymentProviderPesapal, "track-9")
	token, err := f.signer.Sign(card.ID)
	require.NoError(t, err)

	ack, err := f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath+"?token="+token, successCallback), types.PaymentProviderMpesa)
	require.ErrorIs(t, err, reconcile.ErrNotFound)
	require.Equal(t, mpesaAccepted, ack)
	require.Equal(t, types.TransactionStatusPending, f.reload(t, card.ID).Status)

	ack, err = f.h.HandleNotification(serve(http.MethodPost, payment.MpesaWebhookPath+"?token=garbage", successCallback), types.PaymentProviderMpesa)
	require.ErrorIs(t, err, payment.ErrInvalidCallbackToken)
	require.Equal(t, mpesaRejected, ack)
}

func TestPesapalIPN(t *testing.T) {
	f := newFixture(t)
	txn := f.txn(t, types.PaymentProviderPesapal, "track-1")
	f.pesapal.res = &pesapal.TransactionStatusResult{StatusCode: pesapal.StatusCompleted, ConfirmationCode: "PSP-1"}

	target := payment.PesapalWebhookPath + "?OrderTrackingId=track-1&OrderMerchantReference=" + txn.ID + "&OrderNotificationType=IPNCHANGE"
	ack, err := f.h.HandleNotification(serve(http.MethodGet, target, ""), types.PaymentProviderPesapal)
	require.NoError(t, err)
	require.Equal(t, &pesapal.IPNAck{
		OrderNotificationType:  "IPNCHANGE",
		OrderTrackingID:        "track-1",
		OrderMerchantReference: txn.ID,
		Status:                 http.StatusOK,
	}, ack)
	require.Equal(t, types.TransactionStatusCompleted, f.reload(t, txn.ID).Status)
}

func TestPesapalIPNAskForRedeliveryOnQueryFailure(t *testing.T) {
	f := newFixture(t)
	txn := f.txn(t, types.PaymentProviderPesapal, "track-2")
	f.pesapal.err = errors.New("connection reset")

	body := `{"OrderTrackingId":"track-2","OrderMerchantReference":"` + txn.ID + `","OrderNotificationType":"IPNCHANGE"}`
	ack, err := f.h.HandleNotification(serve(http.MethodPost, payment.PesapalWebhookPath, body), types.PaymentProviderPesapal)
	require.Error(t, err)
	require.Equal(t, http.StatusInternalServerError, ack.(*pesapal.IPNAck).Status)
	require.Equal(t, types.TransactionStatusPending, f.reload(t, txn.ID).Status)

	ack, err = f.h.HandleNotification(serve(http.MethodGet, payment.PesapalWebhookPath+"?OrderTrackingId=unknown", ""), types.PaymentProviderPesapal)
	require.ErrorIs(t, err, reconcile.ErrNotFound)
	require.Equal(t, http.StatusOK, ack.(*pesapal.IPNAck).Status)
}
