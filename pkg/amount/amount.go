// Package amount converts loosely typed request amounts into the whole currency
// units gateways accept.
package amount

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Format parses v and truncates it toward zero: 10.99 becomes 10, never 11.
// Cents are dropped silently; unparsable input is always an error.
func Format(v any) (int64, error) {
	d, err := parse(v)
	if err != nil {
		return 0, err
	}
	return d.Truncate(0).IntPart(), nil
}

// Positive formats v and additionally requires at least one whole unit.
func Positive(v any) (int64, error) {
	n, err := Format(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: must be at least 1, got %v", ErrInvalidAmount, v)
	}
	return n, nil
}

func parse(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float32:
		return fromFloat(float64(x), v)
	case float64:
		return fromFloat(x, v)
	case json.Number:
		return fromString(x.String())
	case string:
		return fromString(x)
	case decimal.Decimal:
		return x, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

func fromFloat(f float64, orig any) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, orig)
	}
	return decimal.NewFromFloat(f), nil
}

func fromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}
