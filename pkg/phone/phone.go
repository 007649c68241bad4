// Package phone canonicalises subscriber numbers into the digits-only,
// country-code-prefixed form payment gateways expect (e.g. 254712345678).
package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Plan describes a national numbering plan.
type Plan struct {
	CountryCode   string
	TrunkPrefix   string
	LeadingDigits string
	SubscriberLen int

	pattern *regexp.Regexp
}

// Kenya is the default plan: 254, trunk 0, Safaricom ranges 07xx and 01xx.
var Kenya = NewPlan("254", "0", "17", 9)

func NewPlan(countryCode, trunkPrefix, leadingDigits string, subscriberLen int) *Plan {
	expr := fmt.Sprintf(`^(?:\+?%s|%s)[%s]\d{%d}$`,
		regexp.QuoteMeta(countryCode), regexp.QuoteMeta(trunkPrefix), leadingDigits, subscriberLen-1)
	return &Plan{
		CountryCode:   countryCode,
		TrunkPrefix:   trunkPrefix,
		LeadingDigits: leadingDigits,
		SubscriberLen: subscriberLen,
		pattern:       regexp.MustCompile(expr),
	}
}

// Normalize strips formatting and prefixes the country code.
//
// Inputs that match none of the known shapes still get the country code prepended, so the
// result is not guaranteed to be a valid number. Use Canonical on the payment path.
func (p *Plan) Normalize(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	switch {
	case strings.HasPrefix(digits, p.TrunkPrefix):
		return p.CountryCode + strings.TrimPrefix(digits, p.TrunkPrefix)
	case len(digits) == p.SubscriberLen && strings.ContainsAny(digits[:1], p.LeadingDigits):
		return p.CountryCode + digits
	case strings.HasPrefix(digits, p.CountryCode):
		return digits
	default:
		return p.CountryCode + digits
	}
}

// Valid reports whether raw is a well-formed number in one of the accepted
// shapes: +CC..., CC... or trunk-prefixed. It never panics or errors.
func (p *Plan) Valid(raw string) bool {
	return p.pattern.MatchString(strings.TrimSpace(raw))
}

// Canonical normalizes raw and rejects the result unless it validates.
func (p *Plan) Canonical(raw string) (string, error) {
	n := p.Normalize(raw)
	if !p.Valid(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return n, nil
}

func Normalize(raw string) string { return Kenya.Normalize(raw) }

func Valid(raw string) bool { return Kenya.Valid(raw) }

func Canonical(raw string) (string, error) { return Kenya.Canonical(raw) }
