// Package dbtest opens migrated databases for tests: in-memory sqlite by
// default, postgres when PostgresDSNEnv is set.
package dbtest

import (
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/platform/db"
)

// New returns an isolated database with every model migrated. The pool is
// capped at one connection so concurrent tests exercise serialised writers.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(zap.NewNop().Sugar(), gormlogger.Silent, 0))
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}

// PostgresDSNEnv names the variable holding a disposable postgres DSN.
const PostgresDSNEnv = "APP_TEST_POSTGRES_DSN"

// Postgres returns a migrated postgres database, skipping the test when
// PostgresDSNEnv is unset. Row locks only take effect here.
func Postgres(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	gdb, err := gorm.Open(postgres.Open(dsn), db.GormConfig(zap.NewNop().Sugar(), gormlogger.Silent, 0))
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}
