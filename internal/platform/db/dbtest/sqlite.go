// Package dbtest opens throwaway databases for service tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/internal/platform/db"
	"github.com/fatflowers/storepay/pkg/config"
)

var seq atomic.Int64

// NewSQLite returns a migrated in-memory database private to t.
// It holds a single connection, so queries inside a gorm transaction must use the tx handle.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:storepay_%d?mode=memory&cache=shared", seq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), db.Config(zap.NewNop().Sugar(), config.DBConfig{LogLevel: "silent"}))
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(zap.NewNop().Sugar(), gdb))
	return gdb
}
