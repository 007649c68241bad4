package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEnumValue is returned when a status string is outside its closed set.
var ErrUnknownEnumValue = errors.New("unknown enum value")

// parseEnum matches raw case-insensitively against known values and aliases.
func parseEnum[T ~string](kind, raw string, known []T, aliases map[string]T) (T, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	for _, k := range known {
		if string(k) == key {
			return k, nil
		}
	}
	if v, ok := aliases[key]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %q", ErrUnknownEnumValue, kind, raw)
}

func scanEnum[T ~string](dst *T, src any, parse func(string) (T, error)) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*dst = ""
		return nil
	default:
		return fmt.Errorf("cannot scan %T into enum", src)
	}
	parsed, err := parse(raw)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func valueEnum[T ~string](v T, parse func(string) (T, error)) (driver.Value, error) {
	parsed, err := parse(string(v))
	if err != nil {
		return nil, err
	}
	return string(parsed), nil
}

func unmarshalEnum[T ~string](dst *T, data []byte, parse func(string) (T, error)) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parse(raw)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

// spellings lists, per canonical value, every uppercase spelling that parses to it.
func spellings[T ~string](known []T, aliases map[string]T) map[string][]string {
	out := make(map[string][]string, len(known))
	for _, k := range known {
		out[string(k)] = append(out[string(k)], string(k))
	}
	for alias, k := range aliases {
		out[string(k)] = append(out[string(k)], alias)
	}
	return out
}

// EnumColumn describes a stored enum column for status repair.
type EnumColumn struct {
	Table     string
	Column    string
	Spellings map[string][]string
}

// StoredEnumColumns lists every persisted enum column with the spellings that map to each value.
func StoredEnumColumns() []EnumColumn {
	return []EnumColumn{
		{Table: "order", Column: "status", Spellings: spellings(orderStatuses, orderStatusAliases)},
		{Table: "order", Column: "payment_status", Spellings: spellings(paymentStatuses, paymentStatusAliases)},
		{Table: "transaction", Column: "status", Spellings: spellings(transactionStatuses, transactionStatusAliases)},
		{Table: "transaction", Column: "submission_status", Spellings: spellings(submissionStatuses, nil)},
	}
}

// Spellings returns every stored spelling that reads back as s, for matching legacy rows.
func (s TransactionStatus) Spellings() []string {
	return spellings(transactionStatuses, transactionStatusAliases)[string(s)]
}

func (s PaymentStatus) Spellings() []string {
	return spellings(paymentStatuses, paymentStatusAliases)[string(s)]
}
