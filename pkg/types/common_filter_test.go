package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

type sqlBuilder struct {
	sql  string
	vars []any
}

func (b *sqlBuilder) WriteByte(c byte) error { b.sql += string(c); return nil }
func (b *sqlBuilder) WriteString(s string) (int, error) {
	b.sql += s
	return len(s), nil
}
func (b *sqlBuilder) WriteQuoted(field any) {
	switch f := field.(type) {
	case clause.Column:
		b.sql += `"` + f.Name + `"`
	case string:
		b.sql += `"` + f + `"`
	}
}
func (b *sqlBuilder) AddVar(_ clause.Writer, vars ...any) {
	for range vars {
		b.sql += "?"
	}
	b.vars = append(b.vars, vars...)
}
func (b *sqlBuilder) AddError(error) error { return nil }

func TestCommonFilterValidate(t *testing.T) {
	allowed := []string{"status", "created_at"}

	require.NoError(t, (&CommonFilter{Field: "status", Operator: CommonFilterOperatorEq, Values: []any{"PENDING"}}).Validate(allowed))
	require.Error(t, (&CommonFilter{Field: "status; DROP TABLE", Operator: CommonFilterOperatorEq, Values: []any{1}}).Validate(allowed))
	require.Error(t, (&CommonFilter{Field: "status", Operator: "like", Values: []any{1}}).Validate(allowed))
	require.Error(t, (&CommonFilter{Field: "status", Operator: CommonFilterOperatorEq}).Validate(allowed))
	require.Error(t, (&CommonFilter{Field: "created_at", Operator: CommonFilterOperatorDateRange, Values: []any{"2024-01-01"}}).Validate(allowed))
}

func TestCommonFilterBuild(t *testing.T) {
	b := &sqlBuilder{}
	(&CommonFilter{Field: "amount", Operator: CommonFilterOperatorRange, Values: []any{10, 20}}).Build(b)
	require.Contains(t, b.sql, `"amount" >= ?`)
	require.Contains(t, b.sql, `"amount" <= ?`)
	require.Equal(t, []any{10, 20}, b.vars)

	b = &sqlBuilder{}
	(&CommonFilter{Field: "status", Operator: CommonFilterOperatorNotEq, Values: []any{"PENDING"}}).Build(b)
	require.Equal(t, `"status" <> ?`, b.sql)

	b = &sqlBuilder{}
	(&CommonFilter{Field: "created_at", Operator: CommonFilterOperatorDateRange, Values: []any{"2024-03-01", "2024-03-02"}}).Build(b)
	require.Len(t, b.vars, 2)
	require.Equal(t, "2024-03-03", b.vars[1].(interface{ Format(string) string }).Format("2006-01-02"))
}
