package mpesa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatflowers/storepay/internal/platform/gatewayx"
	"github.com/fatflowers/storepay/pkg/logctx"
)

// Daraja limits AccountReference to 12 and TransactionDesc to 13 characters.
const (
	maxAccountReference = 12
	maxTransactionDesc  = 13
)

// StkPushRequest carries the values that differ per payment. Phone must already be canonical.
type StkPushRequest struct {
	Phone            string
	Amount           int64
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
}

type stkPushBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// StkPushResult is the synchronous submission answer; the payment outcome arrives on the callback.
type StkPushResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

func (r *StkPushResult) Accepted() bool {
	return r != nil && r.ResponseCode == "0" && r.CheckoutRequestID != ""
}

// StkPush submits one push-payment prompt. A nil error means Daraja accepted the submission.
func (c *Client) StkPush(ctx context.Context, req StkPushRequest) (*StkPushResult, error) {
	ts := Timestamp(c.now())
	body := stkPushBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   c.cfg.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            c.cfg.PartyB,
		PhoneNumber:       req.Phone,
		CallBackURL:       req.CallbackURL,
		AccountReference:  clip(req.AccountReference, maxAccountReference),
		TransactionDesc:   clip(req.TransactionDesc, maxTransactionDesc),
	}

	var res StkPushResult
	if err := c.authorized(ctx, "stk_push", stkPushPath, body, &res); err != nil {
		return nil, err
	}
	if !res.Accepted() {
		return &res, fmt.Errorf("%w: %s %s", ErrRejected, res.ResponseCode, res.ResponseDescription)
	}
	logctx.FromCtx(ctx, c.log).Infow("stk_push_submitted",
		"checkout_request_id", res.CheckoutRequestID, "merchant_request_id", res.MerchantRequestID)
	return &res, nil
}

type stkQueryBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type StkQueryResult struct {
	ResponseCode        string     `json:"ResponseCode"`
	ResponseDescription string     `json:"ResponseDescription"`
	MerchantRequestID   string     `json:"MerchantRequestID"`
	CheckoutRequestID   string     `json:"CheckoutRequestID"`
	ResultCode          FlexString `json:"ResultCode"`
	ResultDesc          string     `json:"ResultDesc"`
}

// stillProcessingCode is the errorCode Daraja returns (with HTTP 500) while the prompt is open.
const stillProcessingCode = "500.001.1001"

// StkQuery asks Daraja for the outcome of a prompt. ErrStillProcessing means ask again later.
func (c *Client) StkQuery(ctx context.Context, checkoutRequestID string) (*StkQueryResult, error) {
	ts := Timestamp(c.now())
	body := stkQueryBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var res StkQueryResult
	err := c.authorized(ctx, "stk_query", stkQueryPath, body, &res)
	var se *gatewayx.StatusError
	if errors.As(err, &se) && strings.Contains(se.Body, stillProcessingCode) {
		return nil, ErrStillProcessing
	}
	if err != nil {
		return nil, err
	}
	if res.ResultCode == ResultStillProcessing {
		return &res, ErrStillProcessing
	}
	return &res, nil
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// FlexString decodes JSON strings and numbers alike; Daraja sends ResultCode and expires_in as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(unq))
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("mpesa: not a string or number: %s", s)
	}
	*f = FlexString(s)
	return nil
}
