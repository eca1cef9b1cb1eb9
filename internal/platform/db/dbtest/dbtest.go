// Package dbtest opens throwaway SQLite databases with the service schema
// for store tests.
package dbtest

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/billingsync/internal/models"
)

// New returns a migrated in-memory database private to t. A single
// connection keeps the shared-cache database alive and serialises writers.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

// Close closes the pool under gdb so every later query fails, simulating an
// unreachable store.
func Close(t testing.TB, gdb *gorm.DB) {
	t.Helper()
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

// SQL exposes the pool for assertions that bypass gorm.
func SQL(t testing.TB, gdb *gorm.DB) *sql.DB {
	t.Helper()
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	return sqlDB
}
