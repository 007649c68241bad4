package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/gatewayx"
	"github.com/fatflowers/storepay/internal/platform/mpesa"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
	"github.com/fatflowers/storepay/pkg/amount"
	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/metrics"
	"github.com/fatflowers/storepay/pkg/phone"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

var (
	ErrInvalidRequest = errors.New("invalid payment request")
	// ErrPaymentInProgress means another PENDING transaction holds the order ref.
	ErrPaymentInProgress = errors.New("a payment for this order is already in progress")
	ErrOrderAlreadyPaid  = errors.New("order already paid")
	ErrNotFound          = errors.New("transaction not found")
	// ErrSubmissionFailed means the gateway never accepted the request. The transaction stays
	// PENDING with submission status EXHAUSTED.
	ErrSubmissionFailed = errors.New("payment submission failed")
)

const (
	supersededReason = "superseded by a new attempt"
	defaultCurrency  = "KES"
)

type MpesaGateway interface {
	StkPush(ctx context.Context, req mpesa.StkPushRequest) (*mpesa.StkPushResult, error)
}

type PesapalGateway interface {
	SubmitOrder(ctx context.Context, req pesapal.SubmitOrderRequest) (*pesapal.SubmitOrderResult, error)
}

// InitiateRequest starts a payment for an order, or for a temporary reference when paying first.
type InitiateRequest struct {
	OrderID      string `json:"order_id"`
	TempOrderRef string `json:"temp_order_ref"`
	Phone        string `json:"phone"`
	// Amount defaults to the order total. Cents are dropped.
	Amount      json.Number `json:"amount" swaggertype:"string"`
	Description string      `json:"description"`
	// Email, FirstName and LastName are passed to the Pesapal checkout page.
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type InitiateResult struct {
	Transaction     *models.Transaction `json:"transaction"`
	CustomerMessage string              `json:"customer_message,omitempty"`
	PaymentURL      string              `json:"payment_url,omitempty"`
}

type Service struct {
	cfg       *config.Config
	db        *gorm.DB
	log       *zap.SugaredLogger
	reconcile *reconcile.Service
	mpesa     MpesaGateway
	pesapal   PesapalGateway
	signer    *CallbackSigner
	policy    gatewayx.Policy
	now       func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, rec *reconcile.Service,
	mp MpesaGateway, pp PesapalGateway, signer *CallbackSigner) *Service {
	return &Service{
		cfg:       cfg,
		db:        db,
		log:       log,
		reconcile: rec,
		mpesa:     mp,
		pesapal:   pp,
		signer:    signer,
		policy:    gatewayx.PolicyFromConfig(cfg.Gateway),
		now:       time.Now,
	}
}

// attempt is a validated InitiateRequest.
type attempt struct {
	provider     types.PaymentProvider
	orderID      string
	tempOrderRef string
	phone        string
	amount       int64
	description  string
}

func (a *attempt) orderRef() string {
	return lo.Ternary(a.orderID != "", a.orderID, a.tempOrderRef)
}

// validate normalises the request. It runs before any database or network work.
func validate(provider types.PaymentProvider, req *InitiateRequest) (*attempt, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	a := &attempt{
		provider:     provider,
		orderID:      strings.TrimSpace(req.OrderID),
		tempOrderRef: strings.TrimSpace(req.TempOrderRef),
		description:  strings.TrimSpace(req.Description),
	}
	switch {
	case a.orderID == "" && a.tempOrderRef == "":
		return nil, fmt.Errorf("%w: order_id or temp_order_ref is required", ErrInvalidRequest)
	case a.orderID != "" && a.tempOrderRef != "":
		return nil, fmt.Errorf("%w: order_id and temp_order_ref are exclusive", ErrInvalidRequest)
	case a.tempOrderRef != "" && !strings.HasPrefix(a.tempOrderRef, tool.TempOrderRefPrefix):
		return nil, fmt.Errorf("%w: malformed temp_order_ref %q", ErrInvalidRequest, a.tempOrderRef)
	}

	p, err := phone.Canonical(req.Phone)
	if err != nil {
		if provider == types.PaymentProviderMpesa || strings.TrimSpace(req.Phone) != "" {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	a.phone = p

	if req.Amount != "" {
		if a.amount, err = amount.Positive(req.Amount); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	} else if a.orderID == "" {
		return nil, fmt.Errorf("%w: amount is required when paying before the order exists", ErrInvalidRequest)
	}
	if a.description == "" {
		a.description = "Payment " + a.orderRef()
	}
	return a, nil
}

// InitiateStkPush reserves a PENDING transaction and sends the M-PESA prompt to the payer's phone.
// The outcome arrives later on the callback.
func (s *Service) InitiateStkPush(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	a, err := validate(types.PaymentProviderMpesa, req)
	if err != nil {
		metrics.IncPaymentInitiation(string(types.PaymentProviderMpesa), "invalid")
		return nil, err
	}
	txn, err := s.reserve(ctx, a)
	if err != nil {
		return nil, err
	}

	callbackURL, err := s.signer.URL(MpesaWebhookPath, txn.ID)
	if err != nil {
		return nil, err
	}

	var message string
	txn, err = s.submit(ctx, txn, func(ctx context.Context) (*submission, error) {
		res, err := s.mpesa.StkPush(ctx, mpesa.StkPushRequest{
			Phone:            txn.Phone,
			Amount:           txn.Amount,
			CallbackURL:      callbackURL,
			AccountReference: txn.OrderRef,
			TransactionDesc:  txn.Description,
		})
		if err != nil {
			return nil, err
		}
		message = res.CustomerMessage
		return &submission{providerRef: res.CheckoutRequestID, merchantRequestID: res.MerchantRequestID}, nil
	})
	if err != nil {
		return &InitiateResult{Transaction: txn}, err
	}
	return &InitiateResult{Transaction: txn, CustomerMessage: message}, nil
}

// InitiatePesapalCheckout reserves a PENDING transaction and creates a hosted Pesapal checkout.
// The customer is redirected to PaymentURL; the outcome arrives on the IPN.
func (s *Service) InitiatePesapalCheckout(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	a, err := validate(types.PaymentProviderPesapal, req)
	if err != nil {
		metrics.IncPaymentInitiation(string(types.PaymentProviderPesapal), "invalid")
		return nil, err
	}
	if a.phone == "" && strings.TrimSpace(req.Email) == "" {
		metrics.IncPaymentInitiation(string(types.PaymentProviderPesapal), "invalid")
		return nil, fmt.Errorf("%w: phone or email is required", ErrInvalidRequest)
	}
	txn, err := s.reserve(ctx, a)
	if err != nil {
		return nil, err
	}

	returnURL, err := s.signer.URL(PesapalReturnPath, txn.ID)
	if err != nil {
		return nil, err
	}

	txn, err = s.submit(ctx, txn, func(ctx context.Context) (*submission, error) {
		res, err := s.pesapal.SubmitOrder(ctx, pesapal.SubmitOrderRequest{
			ID:          txn.ID,
			Currency:    txn.Currency,
			Amount:      txn.Amount,
			Description: txn.Description,
			CallbackURL: returnURL,
			BillingAddress: pesapal.BillingAddress{
				PhoneNumber:  txn.Phone,
				EmailAddress: strings.TrimSpace(req.Email),
				FirstName:    req.FirstName,
				LastName:     req.LastName,
			},
		})
		if err != nil {
			return nil, err
		}
		return &submission{providerRef: res.OrderTrackingID, paymentURL: res.RedirectURL}, nil
	})
	if err != nil {
		return &InitiateResult{Transaction: txn}, err
	}
	return &InitiateResult{Transaction: txn, PaymentURL: lo.FromPtr(txn.PaymentURL)}, nil
}

// reserve inserts the PENDING row before anything is sent, so a concurrent initiation for the
// same order ref fails on the partial unique index and never reaches the gateway.
func (s *Service) reserve(ctx context.Context, a *attempt) (*models.Transaction, error) {
	txn := &models.Transaction{
		ID:               tool.GenerateUUIDV7(),
		OrderRef:         a.orderRef(),
		Provider:         a.provider,
		Phone:            a.phone,
		Amount:           a.amount,
		Currency:         defaultCurrency,
		Status:           types.TransactionStatusPending,
		SubmissionStatus: types.SubmissionStatusNotSubmitted,
		Description:      a.description,
	}
	if a.orderID != "" {
		txn.OrderID = lo.ToPtr(a.orderID)
	} else {
		txn.TempOrderRef = lo.ToPtr(a.tempOrderRef)
	}

	var superseded []*reconcile.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if a.orderID != "" {
			o, err := order.Find(tx, a.orderID)
			if err != nil {
				return err
			}
			switch {
			case o.IsArchived:
				return fmt.Errorf("%w: %s", order.ErrOrderArchived, o.ID)
			case o.PaymentStatus == types.PaymentStatusPaid:
				return fmt.Errorf("%w: %s", ErrOrderAlreadyPaid, o.ID)
			}
			if txn.Amount == 0 {
				txn.Amount = o.TotalAmount
			}
			txn.Currency = o.Currency
		} else if a.provider == types.PaymentProviderPesapal && s.cfg.Pesapal.Currency != "" {
			txn.Currency = s.cfg.Pesapal.Currency
		}

		// a PENDING attempt the gateway never accepted must not block a retry
		var stale []*models.Transaction
		if err := tx.Where("order_ref = ? AND UPPER(TRIM(status)) IN ? AND submission_status = ?",
			txn.OrderRef, types.TransactionStatusPending.Spellings(), types.SubmissionStatusExhausted).
			Find(&stale).Error; err != nil {
			return fmt.Errorf("failed to load stale attempts: %w", err)
		}
		for _, old := range stale {
			res, err := s.reconcile.ApplyTx(ctx, tx, old.ID, reconcile.Outcome{
				Status: string(types.TransactionStatusCancelled),
				Source: models.TransactionChangeSourceInitiate,
				Reason: supersededReason,
			})
			if err != nil {
				return err
			}
			superseded = append(superseded, res)
		}

		// legacy spellings sit outside the partial index
		var inFlight int64
		if err := tx.Model(&models.Transaction{}).
			Where("order_ref = ? AND UPPER(TRIM(status)) IN ?", txn.OrderRef, types.TransactionStatusPending.Spellings()).
			Count(&inFlight).Error; err != nil {
			return fmt.Errorf("failed to check pending attempts: %w", err)
		}
		if inFlight > 0 {
			return fmt.Errorf("%w: %s", ErrPaymentInProgress, txn.OrderRef)
		}

		if err := tx.Create(txn).Error; err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("%w: %s", ErrPaymentInProgress, txn.OrderRef)
			}
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		if a.orderID != "" {
			res := tx.Model(&models.Order{}).
				Where("id = ? AND UPPER(TRIM(payment_status)) NOT IN ?", a.orderID, types.PaymentStatusPaid.Spellings()).
				Update("payment_status", types.PaymentStatusPending)
			if res.Error != nil {
				return fmt.Errorf("failed to update order payment status: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", ErrOrderAlreadyPaid, a.orderID)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPaymentInProgress) {
			metrics.IncPaymentInitiation(string(a.provider), "in_progress")
		}
		return nil, err
	}
	for _, res := range superseded {
		s.reconcile.Publish(ctx, res, models.TransactionChangeSourceInitiate)
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_reserved",
		"transaction_id", txn.ID, "order_ref", txn.OrderRef, "provider", txn.Provider, "amount", txn.Amount)
	return txn, nil
}

type submission struct {
	providerRef       string
	merchantRequestID string
	paymentURL        string
}

// submit sends the reserved transaction with bounded retries. The request context's
// cancellation is dropped so a client disconnect cannot abandon a half-sent submission.
func (s *Service) submit(ctx context.Context, txn *models.Transaction, send func(ctx context.Context) (*submission, error)) (*models.Transaction, error) {
	ctx = context.WithoutCancel(ctx)
	log := logctx.FromCtx(ctx, s.log)

	var sub *submission
	attempts, err := s.policy.Retry(ctx, func(ctx context.Context) error {
		var err error
		sub, err = send(ctx)
		return err
	}, func(err error, wait time.Duration) {
		log.Warnw("payment_submit_retry", "transaction_id", txn.ID, "provider", txn.Provider, "wait", wait, "err", err)
	})

	updates := map[string]any{"submit_attempts": attempts, "updated_at": s.now()}
	if err != nil {
		updates["submission_status"] = types.SubmissionStatusExhausted
		updates["last_error"] = err.Error()
	} else {
		updates["submission_status"] = types.SubmissionStatusSubmitted
		updates["provider_ref"] = sub.providerRef
		updates["last_error"] = nil
		if sub.merchantRequestID != "" {
			updates["merchant_request_id"] = sub.merchantRequestID
		}
		if sub.paymentURL != "" {
			updates["payment_url"] = sub.paymentURL
		}
	}
	if uerr := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", txn.ID).Updates(updates).Error; uerr != nil {
		log.Errorw("payment_submit_record_failed", "transaction_id", txn.ID, "err", uerr)
		return txn, fmt.Errorf("failed to record submission: %w", uerr)
	}
	stored, ferr := s.GetTransaction(ctx, txn.ID)
	if ferr != nil {
		return txn, ferr
	}

	if err != nil {
		metrics.IncPaymentInitiation(string(txn.Provider), "exhausted")
		log.Errorw("payment_submit_failed", "transaction_id", txn.ID, "provider", txn.Provider, "attempts", attempts, "err", err)
		return stored, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	metrics.IncPaymentInitiation(string(txn.Provider), "submitted")
	log.Infow("payment_submitted", "transaction_id", txn.ID, "provider", txn.Provider, "provider_ref", sub.providerRef, "attempts", attempts)
	return stored, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

type TempRefResult struct {
	TempOrderRef string `json:"temp_order_ref"`
}

// IssueTempRef hands out a reference for paying before the order exists. It is bound to the
// order later with order.BindTempRef.
func (s *Service) IssueTempRef(ctx context.Context) *TempRefResult {
	ref := tool.GenerateTempOrderRef()
	logctx.FromCtx(ctx, s.log).Infow("temp_ref_issued", "temp_order_ref", ref)
	return &TempRefResult{TempOrderRef: ref}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
