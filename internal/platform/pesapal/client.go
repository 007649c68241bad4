// Package pesapal is a Pesapal API 3.0 client for hosted (redirect) checkout.
package pesapal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/storepay/internal/platform/gatewayx"
	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/types"
)

const (
	ProviderName = "pesapal"

	tokenPath  = "/api/Auth/RequestToken"
	submitPath = "/api/Transactions/SubmitOrderRequest"
	statusPath = "/api/Transactions/GetTransactionStatus"

	tokenSkew = time.Minute
)

var (
	ErrTokenUnavailable = errors.New("pesapal: access token unavailable")
	ErrRejected         = errors.New("pesapal: request rejected")
)

// APIError is the error object Pesapal embeds in otherwise successful HTTP answers.
type APIError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (e *APIError) present() bool {
	return e != nil && (e.Code != "" || e.Message != "")
}

type Client struct {
	cfg config.PesapalConfig
	gw  *gatewayx.Client
	log *zap.SugaredLogger
	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClient(cfg config.PesapalConfig, gw *gatewayx.Client, l *zap.SugaredLogger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "KES"
	}
	return &Client{cfg: cfg, gw: gw, log: l, now: time.Now}
}

type tokenRequest struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type tokenResponse struct {
	Token      string    `json:"token"`
	ExpiryDate string    `json:"expiryDate"`
	Error      *APIError `json:"error"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
}

// Token returns a cached bearer token. Failures yield ErrTokenUnavailable and are not retried here.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiresAt) {
		return c.token, nil
	}

	var resp tokenResponse
	body := tokenRequest{ConsumerKey: c.cfg.ConsumerKey, ConsumerSecret: c.cfg.ConsumerSecret}
	if err := c.gw.DoJSON(ctx, "token", http.MethodPost, c.cfg.BaseURL+tokenPath, nil, body, &resp); err != nil {
		logctx.FromCtx(ctx, c.log).Errorw("pesapal_token_failed", "err", err)
		return "", fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}
	if resp.Error.present() || resp.Token == "" {
		logctx.FromCtx(ctx, c.log).Errorw("pesapal_token_failed", "status", resp.Status, "error", resp.Error)
		return "", fmt.Errorf("%w: status %s", ErrTokenUnavailable, resp.Status)
	}

	expiresAt := now.Add(5 * time.Minute)
	if t, err := time.Parse(time.RFC3339Nano, resp.ExpiryDate); err == nil {
		expiresAt = t
	}
	c.token = resp.Token
	c.expiresAt = expiresAt.Add(-tokenSkew)
	return c.token, nil
}

func (c *Client) authorized(ctx context.Context, op, method, endpoint string, body, out any) error {
	token, err := c.Token(ctx)
	if err != nil {
		// no token is a hard stop for this attempt
		return gatewayx.Permanent(err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	err = c.gw.DoJSON(ctx, op, method, endpoint, header, body, out)
	var se *gatewayx.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	return err
}

type BillingAddress struct {
	PhoneNumber  string `json:"phone_number,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
}

// SubmitOrderRequest is the checkout being created. ID is our merchant reference.
type SubmitOrderRequest struct {
	ID             string         `json:"id"`
	Currency       string         `json:"currency"`
	Amount         int64          `json:"amount"`
	Description    string         `json:"description"`
	CallbackURL    string         `json:"callback_url"`
	NotificationID string         `json:"notification_id"`
	BillingAddress BillingAddress `json:"billing_address"`
}

type SubmitOrderResult struct {
	OrderTrackingID   string    `json:"order_tracking_id"`
	MerchantReference string    `json:"merchant_reference"`
	RedirectURL       string    `json:"redirect_url"`
	Error             *APIError `json:"error"`
	Status            string    `json:"status"`
}

// SubmitOrder creates a hosted checkout and returns where to redirect the customer.
func (c *Client) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*SubmitOrderResult, error) {
	if req.Currency == "" {
		req.Currency = c.cfg.Currency
	}
	if req.NotificationID == "" {
		req.NotificationID = c.cfg.NotificationID
	}
	if len(req.Description) > 100 {
		req.Description = req.Description[:100]
	}

	var res SubmitOrderResult
	if err := c.authorized(ctx, "submit_order", http.MethodPost, c.cfg.BaseURL+submitPath, req, &res); err != nil {
		return nil, err
	}
	if res.Error.present() || res.OrderTrackingID == "" || res.RedirectURL == "" {
		msg := ""
		if res.Error != nil {
			msg = res.Error.Message
		}
		return &res, fmt.Errorf("%w: status %s %s", ErrRejected, res.Status, msg)
	}
	logctx.FromCtx(ctx, c.log).Infow("pesapal_order_submitted",
		"order_tracking_id", res.OrderTrackingID, "merchant_reference", res.MerchantReference)
	return &res, nil
}

// Status codes of GetTransactionStatus.
const (
	StatusInvalid   = 0
	StatusCompleted = 1
	StatusFailed    = 2
	StatusReversed  = 3
)

type TransactionStatusResult struct {
	PaymentMethod            string    `json:"payment_method"`
	Amount                   float64   `json:"amount"`
	CreatedDate              string    `json:"created_date"`
	ConfirmationCode         string    `json:"confirmation_code"`
	PaymentStatusDescription string    `json:"payment_status_description"`
	Description              string    `json:"description"`
	Message                  string    `json:"message"`
	PaymentAccount           string    `json:"payment_account"`
	StatusCode               int       `json:"status_code"`
	MerchantReference        string    `json:"merchant_reference"`
	Currency                 string    `json:"currency"`
	Error                    *APIError `json:"error"`
	Status                   string    `json:"status"`
}

// TransactionStatus maps status_code onto our status. INVALID means not paid yet, so PENDING.
func (r *TransactionStatusResult) TransactionStatus() types.TransactionStatus {
	switch r.StatusCode {
	case StatusCompleted:
		return types.TransactionStatusCompleted
	case StatusFailed:
		return types.TransactionStatusFailed
	case StatusReversed:
		return types.TransactionStatusRefunded
	default:
		return types.TransactionStatusPending
	}
}

// GetTransactionStatus asks Pesapal for the state of a checkout.
func (c *Client) GetTransactionStatus(ctx context.Context, orderTrackingID string) (*TransactionStatusResult, error) {
	endpoint := c.cfg.BaseURL + statusPath + "?orderTrackingId=" + url.QueryEscape(orderTrackingID)

	var res TransactionStatusResult
	if err := c.authorized(ctx, "transaction_status", http.MethodGet, endpoint, nil, &res); err != nil {
		return nil, err
	}
	if res.Error.present() && res.StatusCode == StatusInvalid {
		return &res, fmt.Errorf("%w: %s", ErrRejected, res.Error.Message)
	}
	return &res, nil
}
