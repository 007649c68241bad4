// Package mpesa is a Daraja (Safaricom M-PESA) client for Lipa Na M-PESA Online (STK push).
package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/storepay/internal/platform/gatewayx"
	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
)

const (
	ProviderName = "mpesa"

	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// refresh a little before the provider expires the token
	tokenSkew = time.Minute
)

var (
	ErrTokenUnavailable = errors.New("mpesa: access token unavailable")
	// ErrRejected means Daraja answered but did not accept the request (ResponseCode != "0").
	ErrRejected = errors.New("mpesa: request rejected")
	// ErrStillProcessing is the STK query answer while the customer has not acted yet.
	ErrStillProcessing = errors.New("mpesa: transaction still processing")
)

// eat is East Africa Time; Daraja validates timestamps in it.
var eat = time.FixedZone("EAT", 3*60*60)

// Client talks to one Daraja environment with one set of credentials.
type Client struct {
	cfg config.MpesaConfig
	gw  *gatewayx.Client
	log *zap.SugaredLogger
	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClient(cfg config.MpesaConfig, gw *gatewayx.Client, l *zap.SugaredLogger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PartyB == "" {
		cfg.PartyB = cfg.ShortCode
	}
	if cfg.TransactionType == "" {
		cfg.TransactionType = "CustomerPayBillOnline"
	}
	return &Client{cfg: cfg, gw: gw, log: l, now: time.Now}
}

// Timestamp formats t as YYYYMMDDHHMMSS in East Africa Time.
func Timestamp(t time.Time) string {
	return t.In(eat).Format("20060102150405")
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   FlexString `json:"expires_in"`
}

// Token returns a cached bearer token, fetching a new one when it is about to expire.
// Any failure yields ErrTokenUnavailable; nothing is retried here.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiresAt) {
		return c.token, nil
	}

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey+":"+c.cfg.ConsumerSecret)))

	var resp tokenResponse
	if err := c.gw.DoJSON(ctx, "token", http.MethodGet, c.cfg.BaseURL+tokenPath, header, nil, &resp); err != nil {
		logctx.FromCtx(ctx, c.log).Errorw("mpesa_token_failed", "err", err)
		return "", fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}
	if resp.AccessToken == "" {
		logctx.FromCtx(ctx, c.log).Errorw("mpesa_token_failed", "err", "empty access_token")
		return "", fmt.Errorf("%w: empty access_token", ErrTokenUnavailable)
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(string(resp.ExpiresIn)); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	c.token = resp.AccessToken
	c.expiresAt = now.Add(ttl - tokenSkew)
	return c.token, nil
}

// invalidate drops the cached token after the provider refused it.
func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) authorized(ctx context.Context, op, path string, body, out any) error {
	token, err := c.Token(ctx)
	if err != nil {
		// no token is a hard stop for this attempt
		return gatewayx.Permanent(err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	err = c.gw.DoJSON(ctx, op, http.MethodPost, c.cfg.BaseURL+path, header, body, out)
	var se *gatewayx.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		c.invalidate()
	}
	return err
}
