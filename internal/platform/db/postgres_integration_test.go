package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/internal/models"
	cfgpkg "github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

func newPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storepay"),
		tcpostgres.WithUsername("storepay"),
		tcpostgres.WithPassword("storepay"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	l := zap.NewNop().Sugar()
	gdb, err := gorm.Open(postgres.Open(dsn), Config(l, cfgpkg.DBConfig{LogLevel: "silent"}))
	require.NoError(t, err)
	require.NoError(t, RunMigrations(l, gdb))
	return gdb
}

func pendingTxn(orderRef string) *models.Transaction {
	return &models.Transaction{
		ID:       tool.GenerateUUIDV7(),
		OrderRef: orderRef,
		Provider: types.PaymentProviderMpesa,
		Phone:    "254712345678",
		Amount:   100,
		Currency: "KES",
		Status:   types.TransactionStatusPending,
	}
}

func TestPostgresMigrations(t *testing.T) {
	gdb := newPostgres(t)

	t.Run("one pending transaction per order ref", func(t *testing.T) {
		ref := tool.GenerateTempOrderRef()
		require.NoError(t, gdb.Create(pendingTxn(ref)).Error)

		err := gdb.Create(pendingTxn(ref)).Error
		require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

		failed := pendingTxn(ref)
		failed.Status = types.TransactionStatusFailed
		require.NoError(t, gdb.Create(failed).Error)
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, RunMigrations(zap.NewNop().Sugar(), gdb))
	})

	t.Run("gorm models match the migrated schema", func(t *testing.T) {
		for _, m := range Models() {
			require.True(t, gdb.Migrator().HasTable(m))
		}
		require.True(t, gdb.Migrator().HasIndex(&models.Transaction{}, "uniq_transaction_pending_order_ref"))
	})
}
