package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/db/dbtest"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

func seed(t *testing.T, db *gorm.DB, day string, status types.TransactionStatus, currency string, amount int64) {
	created, err := time.Parse(time.DateOnly, day)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Transaction{
		ID:        tool.GenerateUUIDV7(),
		OrderRef:  tool.GenerateTempOrderRef(),
		Provider:  types.PaymentProviderMpesa,
		Amount:    amount,
		Currency:  currency,
		Status:    status,
		CreatedAt: created.Add(10 * time.Hour),
	}).Error)
}

func TestGetDailyPaymentStatistic(t *testing.T) {
	db := dbtest.NewSQLite(t)
	svc := New(db)
	ctx := context.Background()

	seed(t, db, "2026-03-01", types.TransactionStatusCompleted, "KES", 100)
	seed(t, db, "2026-03-01", types.TransactionStatusCompleted, "KES", 50)
	seed(t, db, "2026-03-01", types.TransactionStatusFailed, "KES", 70)
	seed(t, db, "2026-03-01", types.TransactionStatusCompleted, "USD", 5)
	seed(t, db, "2026-03-02", types.TransactionStatusCompleted, "KES", 30)
	seed(t, db, "2026-03-02", types.TransactionStatusCancelled, "KES", 30)

	res, err := svc.GetDailyPaymentStatistic(ctx, &PaymentStatisticRequest{
		DataItems: []*PaymentStatisticDataItem{
			{ID: StatisticTypeDailyTransactionCount},
			{ID: StatisticTypeDailyGmv},
			{ID: StatisticTypeTotalGmv},
		},
	})
	require.NoError(t, err)

	require.Equal(t, []PaymentStatisticResponseDataItem{
		{Date: "2026-03-01", Label: "COMPLETED", Value: 3},
		{Date: "2026-03-01", Label: "FAILED", Value: 1},
		{Date: "2026-03-02", Label: "CANCELLED", Value: 1},
		{Date: "2026-03-02", Label: "COMPLETED", Value: 1},
	}, res.DataItems[StatisticTypeDailyTransactionCount])

	require.Equal(t, []PaymentStatisticResponseDataItem{
		{Date: "2026-03-02", Label: "KES", Value: 30},
		{Date: "2026-03-01", Label: "KES", Value: 150},
		{Date: "2026-03-01", Label: "USD", Value: 5},
	}, res.DataItems[StatisticTypeDailyGmv])

	require.Equal(t, []PaymentStatisticResponseDataItem{
		{Date: "2026-03-02", Label: "KES", Value: 180},
		{Date: "2026-03-01", Label: "KES", Value: 150},
		{Date: "2026-03-01", Label: "USD", Value: 5},
	}, res.DataItems[StatisticTypeTotalGmv])
}

func TestGetDailyPaymentStatisticFilters(t *testing.T) {
	db := dbtest.NewSQLite(t)
	svc := New(db)
	ctx := context.Background()

	seed(t, db, "2026-03-01", types.TransactionStatusCompleted, "KES", 100)
	seed(t, db, "2026-03-05", types.TransactionStatusCompleted, "KES", 40)

	res, err := svc.GetDailyPaymentStatistic(ctx, &PaymentStatisticRequest{
		Filters: []*types.CommonFilter{{
			Field: "created_at", Operator: types.CommonFilterOperatorDateRange, Values: []any{"2026-03-04", "2026-03-05"},
		}},
		DataItems: []*PaymentStatisticDataItem{{ID: StatisticTypeDailyGmv}},
	})
	require.NoError(t, err)
	require.Equal(t, []PaymentStatisticResponseDataItem{{Date: "2026-03-05", Label: "KES", Value: 40}}, res.DataItems[StatisticTypeDailyGmv])

	_, err = svc.GetDailyPaymentStatistic(ctx, &PaymentStatisticRequest{
		Filters:   []*types.CommonFilter{{Field: "1=1 OR amount", Operator: types.CommonFilterOperatorEq, Values: []any{1}}},
		DataItems: []*PaymentStatisticDataItem{{ID: StatisticTypeDailyGmv}},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.GetDailyPaymentStatistic(ctx, &PaymentStatisticRequest{
		DataItems: []*PaymentStatisticDataItem{{ID: "renewal_success_rate"}},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}
