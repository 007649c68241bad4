package payment

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/fatflowers/storepay/pkg/config"
)

const (
	MpesaWebhookPath   = "/api/v1/payment/webhook/mpesa"
	PesapalWebhookPath = "/api/v1/payment/webhook/pesapal"
	// PesapalReturnPath is where Pesapal sends the customer's browser after checkout.
	PesapalReturnPath = "/payment/complete"

	CallbackTokenParam = "token"
)

var ErrInvalidCallbackToken = errors.New("invalid callback token")

// CallbackSigner binds callback URLs to one transaction with an HS256 token. Without a
// secret it signs nothing and accepts everything.
type CallbackSigner struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewCallbackSigner(cfg *config.Config) *CallbackSigner {
	return &CallbackSigner{
		baseURL: strings.TrimRight(cfg.Callback.BaseURL, "/"),
		secret:  []byte(cfg.Callback.Secret),
		ttl:     cfg.Callback.TokenTTL,
		now:     time.Now,
	}
}

func (s *CallbackSigner) Enabled() bool { return len(s.secret) > 0 }

func (s *CallbackSigner) Sign(transactionID string) (string, error) {
	now := s.now()
	claims := jwt.StandardClaims{Subject: transactionID, IssuedAt: now.Unix()}
	if s.ttl > 0 {
		claims.ExpiresAt = now.Add(s.ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// URL returns the public callback URL for path, carrying a token for transactionID when enabled.
func (s *CallbackSigner) URL(path, transactionID string) (string, error) {
	raw := s.baseURL + path
	if !s.Enabled() {
		return raw, nil
	}
	token, err := s.Sign(transactionID)
	if err != nil {
		return "", fmt.Errorf("failed to sign callback url: %w", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid callback base url: %w", err)
	}
	q := u.Query()
	q.Set(CallbackTokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks that token was issued by us for transactionID.
func (s *CallbackSigner) Verify(token, transactionID string) error {
	if !s.Enabled() {
		return nil
	}
	subject, err := s.Subject(token)
	if err != nil {
		return err
	}
	if subject != transactionID {
		return fmt.Errorf("%w: issued for another transaction", ErrInvalidCallbackToken)
	}
	return nil
}

// Subject returns the transaction id a valid token was issued for.
func (s *CallbackSigner) Subject(token string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("%w: signing disabled", ErrInvalidCallbackToken)
	}
	if token == "" {
		return "", fmt.Errorf("%w: missing", ErrInvalidCallbackToken)
	}
	var claims jwt.StandardClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCallbackToken, err)
	}
	return claims.Subject, nil
}
