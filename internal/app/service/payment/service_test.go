package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/db/dbtest"
	"github.com/fatflowers/storepay/internal/platform/gatewayx"
	"github.com/fatflowers/storepay/internal/platform/kafka"
	"github.com/fatflowers/storepay/internal/platform/mpesa"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/phone"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

type fakeMpesa struct {
	mu    sync.Mutex
	reqs  []mpesa.StkPushRequest
	fail  func(call int) error
	delay time.Duration
}

func (f *fakeMpesa) StkPush(_ context.Context, req mpesa.StkPushRequest) (*mpesa.StkPushResult, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.fail != nil {
		if err := f.fail(len(f.reqs)); err != nil {
			return nil, err
		}
	}
	n := len(f.reqs)
	return &mpesa.StkPushResult{
		MerchantRequestID: fmt.Sprintf("29115-%d", n),
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", n),
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (f *fakeMpesa) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakePesapal struct {
	reqs []pesapal.SubmitOrderRequest
}

func (f *fakePesapal) SubmitOrder(_ context.Context, req pesapal.SubmitOrderRequest) (*pesapal.SubmitOrderResult, error) {
	f.reqs = append(f.reqs, req)
	return &pesapal.SubmitOrderResult{
		OrderTrackingID: "b945e4af-80a5-4ec1-8706-e03f8332fb04",
		RedirectURL:     "https://pay.pesapal.com/iframe/PesapalIframe3/Index?OrderTrackingId=b945e4af",
		Status:          "200",
	}, nil
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	mpesa   *fakeMpesa
	pesapal *fakePesapal
}

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		Callback: config.CallbackConfig{
			BaseURL:  "https://shop.example.com/",
			Secret:   "callback-secret",
			TokenTTL: time.Hour,
		},
		Pesapal: config.PesapalConfig{Currency: "KES"},
	}
}

func newFixture(t *testing.T) *fixture {
	gdb := dbtest.NewSQLite(t)
	cfg := testConfig()
	l := zap.NewNop().Sugar()
	rec := reconcile.NewService(cfg, gdb, l, kafka.NewLogPublisher(l), nil, nil)
	f := &fixture{db: gdb, mpesa: &fakeMpesa{}, pesapal: &fakePesapal{}}
	f.svc = NewService(cfg, gdb, l, rec, f.mpesa, f.pesapal, NewCallbackSigner(cfg))
	return f
}

func (f *fixture) order(t *testing.T, total int64) *models.Order {
	o := &models.Order{ID: tool.GenerateUUIDV7(), CustomerPhone: "254712345678", TotalAmount: total, Currency: "KES"}
	require.NoError(t, f.db.Create(o).Error)
	return o
}

func (f *fixture) pendingFor(t *testing.T, ref string) int64 {
	var n int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("order_ref = ? AND status = ?", ref, types.TransactionStatusPending).Count(&n).Error)
	return n
}

func TestInitiateRejectsBadInputBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, 100)

	cases := []struct {
		name string
		req  *InitiateRequest
		is   error
	}{
		{"no reference", &InitiateRequest{Phone: "0712345678", Amount: "10"}, ErrInvalidRequest},
		{"both references", &InitiateRequest{OrderID: o.ID, TempOrderRef: "TMP-ABC", Phone: "0712345678"}, ErrInvalidRequest},
		{"malformed temp ref", &InitiateRequest{TempOrderRef: "ABC", Phone: "0712345678", Amount: "10"}, ErrInvalidRequest},
		{"short phone", &InitiateRequest{OrderID: o.ID, Phone: "12345"}, phone.ErrInvalidPhone},
		{"bad amount", &InitiateRequest{OrderID: o.ID, Phone: "0712345678", Amount: "abc"}, ErrInvalidRequest},
		{"zero amount", &InitiateRequest{OrderID: o.ID, Phone: "0712345678", Amount: "0.5"}, ErrInvalidRequest},
		{"temp ref without amount", &InitiateRequest{TempOrderRef: "TMP-ABC", Phone: "0712345678"}, ErrInvalidRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.svc.InitiateStkPush(ctx, c.req)
			require.ErrorIs(t, err, c.is)
		})
	}
	require.Zero(t, f.mpesa.calls())

	var n int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestInitiateStkPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, 1500)

	res, err := f.svc.InitiateStkPush(ctx, &InitiateRequest{OrderID: o.ID, Phone: "+254 712 345 678"})
	require.NoError(t, err)
	txn := res.Transaction
	require.Equal(t, types.TransactionStatusPending, txn.Status)
	require.Equal(t, types.SubmissionStatusSubmitted, txn.SubmissionStatus)
	require.Equal(t, 1, txn.SubmitAttempts)
	require.Equal(t, "ws_CO_1", lo.FromPtr(txn.ProviderRef))
	require.Equal(t, "29115-1", lo.FromPtr(txn.MerchantRequestID))
	require.Equal(t, int64(1500), txn.Amount)
	require.Equal(t, o.ID, txn.OrderRef)
	require.NotEmpty(t, res.CustomerMessage)

	sent := f.mpesa.reqs[0]
	require.Equal(t, "254712345678", sent.Phone)
	require.Equal(t, int64(1500), sent.Amount)
	u, err := url.Parse(sent.CallbackURL)
	require.NoError(t, err)
	require.Equal(t, "https://shop.example.com"+MpesaWebhookPath, u.Scheme+"://"+u.Host+u.Path)
	require.NoError(t, f.svc.signer.Verify(u.Query().Get(CallbackTokenParam), txn.ID))

	stored, err := order.Find(f.db, o.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusPending, stored.PaymentStatus)

	_, err = f.svc.InitiateStkPush(ctx, &InitiateRequest{OrderID: o.ID, Phone: "0712345678"})
	require.ErrorIs(t, err, ErrPaymentInProgress)
	require.Equal(t, 1, f.mpesa.calls())

	got, err := f.svc.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, txn.ID, got.ID)
	_, err = f.svc.GetTransaction(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentInitiationLeavesOnePending(t *testing.T) {
	f := newFixture(t)
	f.mpesa.delay = 5 * time.Millisecond
	o := f.order(t, 100)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.InitiateStkPush(context.Background(), &InitiateRequest{OrderID: o.ID, Phone: "0712345678"})
		}(i)
	}
	wg.Wait()

	ok := lo.CountBy(errs, func(err error) bool { return err == nil })
	busy := lo.CountBy(errs, func(err error) bool { return errors.Is(err, ErrPaymentInProgress) })
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, busy)
	require.Equal(t, 1, f.mpesa.calls())
	require.EqualValues(t, 1, f.pendingFor(t, o.ID))
}

func TestSubmissionExhaustedStaysPendingAndIsSuperseded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, 100)

	f.mpesa.fail = func(int) error {
		return &gatewayx.StatusError{Provider: "mpesa", Op: "stk_push", StatusCode: 503, Body: "unavailable"}
	}
	res, err := f.svc.InitiateStkPush(ctx, &InitiateRequest{OrderID: o.ID, Phone: "0712345678"})
	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.NotNil(t, res)
	failed := res.Transaction
	require.Equal(t, types.TransactionStatusPending, failed.Status)
	require.Equal(t, types.SubmissionStatusExhausted, failed.SubmissionStatus)
	require.Equal(t, 3, failed.SubmitAttempts)
	require.Contains(t, lo.FromPtr(failed.LastError), "503")
	require.False(t, failed.HasProviderRef())

	f.mpesa.fail = nil
	retry, err := f.svc.InitiateStkPush(ctx, &InitiateRequest{OrderID: o.ID, Phone: "0712345678"})
	require.NoError(t, err)
	require.NotEqual(t, failed.ID, retry.Transaction.ID)

	old, err := f.svc.GetTransaction(ctx, failed.ID)
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusCancelled, old.Status)
	require.EqualValues(t, 1, f.pendingFor(t, o.ID))

	stored, err := order.Find(f.db, o.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusPending, stored.PaymentStatus)
}

func TestPermanentFailuresAreNotRetried(t *testing.T) {
	for name, cause := range map[string]error{
		"rejected":    fmt.Errorf("%w: 1 invalid shortcode", mpesa.ErrRejected),
		"no token":    gatewayx.Permanent(fmt.Errorf("%w: boom", mpesa.ErrTokenUnavailable)),
		"bad request": &gatewayx.StatusError{StatusCode: 400},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			o := f.order(t, 100)
			f.mpesa.fail = func(int) error { return cause }

			res, err := f.svc.InitiateStkPush(context.Background(), &InitiateRequest{OrderID: o.ID, Phone: "0712345678"})
			require.ErrorIs(t, err, ErrSubmissionFailed)
			require.Equal(t, 1, f.mpesa.calls())
			require.Equal(t, 1, res.Transaction.SubmitAttempts)
			require.Equal(t, types.TransactionStatusPending, res.Transaction.Status)
		})
	}
}

func TestInitiateRefusesArchivedAndPaidOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	archived := f.order(t, 100)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", archived.ID).
		Updates(map[string]any{"is_archived": true, "archived_at": time.Now()}).Error)
	_, err := f.svc.InitiateStkPush(ctx, &InitiateRequest{OrderID: archived.ID, Phone: "0712345678"})
	require.ErrorIs(t, err, order.ErrOrderArchived)

	paid := f.order(t, 100)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", paid.ID).
		Update("payment_status", types.PaymentStatusPaid).Error)
	_, err = f.svc.InitiateStkPush(ctx, &InitiateRequest{OrderID: paid.ID, Phone: "0712345678"})
	require.ErrorIs(t, err, ErrOrderAlreadyPaid)

	_, err = f.svc.InitiateStkPush(ctx, &InitiateRequest{OrderID: "missing", Phone: "0712345678"})
	require.ErrorIs(t, err, order.ErrNotFound)
	require.Zero(t, f.mpesa.calls())
}

func TestInitiateRefusesLegacyPendingAttempt(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, 100)
	legacy := &models.Transaction{
		ID:       tool.GenerateUUIDV7(),
		OrderID:  lo.ToPtr(o.ID),
		OrderRef: o.ID,
		Provider: types.PaymentProviderMpesa,
		Amount:   100,
		Currency: "KES",
		Status:   types.TransactionStatusPending,
	}
	require.NoError(t, f.db.Create(legacy).Error)
	require.NoError(t, f.db.Exec(`UPDATE "transaction" SET status = 'pending' WHERE id = ?`, legacy.ID).Error)

	_, err := f.svc.InitiateStkPush(context.Background(), &InitiateRequest{OrderID: o.ID, Phone: "0712345678"})
	require.ErrorIs(t, err, ErrPaymentInProgress)
	require.Zero(t, f.mpesa.calls())

	var n int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("order_ref = ?", o.ID).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestReserveKeepsOrderPaidByConcurrentCompletion(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, 100)

	// settle the order between the paid check and the payment_status write
	require.NoError(t, f.db.Callback().Create().After("gorm:create").Register("test:settle_order", func(db *gorm.DB) {
		txn, ok := db.Statement.Dest.(*models.Transaction)
		if !ok || txn.OrderID == nil {
			return
		}
		db.Session(&gorm.Session{NewDB: true}).Model(&models.Order{}).
			Where("id = ?", *txn.OrderID).UpdateColumn("payment_status", "paid")
	}))

	_, err := f.svc.InitiateStkPush(context.Background(), &InitiateRequest{OrderID: o.ID, Phone: "0712345678"})
	require.ErrorIs(t, err, ErrOrderAlreadyPaid)
	require.Zero(t, f.mpesa.calls())

	// the reservation rolls back with the simulated completion
	require.Zero(t, f.pendingFor(t, o.ID))
}

func TestInitiatePesapalCheckoutWithTempRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.svc.IssueTempRef(ctx).TempOrderRef

	_, err := f.svc.InitiatePesapalCheckout(ctx, &InitiateRequest{TempOrderRef: ref, Amount: json.Number("250.9")})
	require.ErrorIs(t, err, ErrInvalidRequest)

	res, err := f.svc.InitiatePesapalCheckout(ctx, &InitiateRequest{
		TempOrderRef: ref, Amount: json.Number("250.9"), Email: "jane@example.com", FirstName: "Jane",
	})
	require.NoError(t, err)
	require.Equal(t, int64(250), res.Transaction.Amount)
	require.Equal(t, ref, lo.FromPtr(res.Transaction.TempOrderRef))
	require.Nil(t, res.Transaction.OrderID)
	require.Contains(t, res.PaymentURL, "OrderTrackingId=")
	require.Equal(t, "b945e4af-80a5-4ec1-8706-e03f8332fb04", lo.FromPtr(res.Transaction.ProviderRef))

	sent := f.pesapal.reqs[0]
	require.Equal(t, res.Transaction.ID, sent.ID)
	require.Equal(t, "KES", sent.Currency)
	require.Contains(t, sent.CallbackURL, "https://shop.example.com"+PesapalReturnPath+"?token=")
	require.Equal(t, "jane@example.com", sent.BillingAddress.EmailAddress)
}

func TestScanTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for range 3 {
		o := f.order(t, 100)
		_, err := f.svc.InitiateStkPush(ctx, &InitiateRequest{OrderID: o.ID, Phone: "0712345678"})
		require.NoError(t, err)
	}

	res, err := f.svc.ScanTransactions(ctx, &ScanTransactionsRequest{
		Filters: []*types.CommonFilter{{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"pending"}}},
		Size:    2,
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Total)
	require.Len(t, res.Items, 2)

	_, err = f.svc.ScanTransactions(ctx, &ScanTransactionsRequest{
		Filters: []*types.CommonFilter{{Field: "phone; DROP TABLE", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.ScanTransactions(ctx, &ScanTransactionsRequest{SortBy: "last_error"})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.ScanTransactions(ctx, &ScanTransactionsRequest{
		Filters: []*types.CommonFilter{{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"bogus"}}},
	})
	require.ErrorIs(t, err, types.ErrUnknownEnumValue)
}
