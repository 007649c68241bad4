package types

import (
	"fmt"
	"strings"
)

type PaymentProvider string

const (
	PaymentProviderMpesa   PaymentProvider = "mpesa"
	PaymentProviderPesapal PaymentProvider = "pesapal"
	// PaymentProviderManual marks transactions recorded by an operator.
	PaymentProviderManual PaymentProvider = "manual"
)

func ParsePaymentProvider(raw string) (PaymentProvider, error) {
	switch p := PaymentProvider(strings.ToLower(strings.TrimSpace(raw))); p {
	case PaymentProviderMpesa, PaymentProviderPesapal, PaymentProviderManual:
		return p, nil
	default:
		return "", fmt.Errorf("%w: payment provider %q", ErrUnknownEnumValue, raw)
	}
}
