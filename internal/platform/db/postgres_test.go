package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/platform/db/dbtest"
	cfgpkg "github.com/fatflowers/billingsync/pkg/config"
)

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsRetryable(fmt.Errorf("save: %w", &pgconn.PgError{Code: "40P01"})))
	require.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsRetryable(errors.New("connection refused")))
	require.False(t, IsRetryable(nil))
}

func TestNewDBRejectsEmptyDSN(t *testing.T) {
	_, err := NewDB(zap.NewNop().Sugar(), &cfgpkg.Config{})
	require.Error(t, err)
}

func TestMigrateAutoAndNone(t *testing.T) {
	gdb := dbtest.New(t)
	l := zap.NewNop().Sugar()

	require.NoError(t, Migrate(l, &cfgpkg.Config{Database: cfgpkg.DBConfig{Migrate: "none"}}, gdb))
	require.NoError(t, Migrate(l, &cfgpkg.Config{Database: cfgpkg.DBConfig{Migrate: "auto"}}, gdb))
	require.True(t, gdb.Migrator().HasTable("webhook_event_log"))
}

func TestPing(t *testing.T) {
	gdb := dbtest.New(t)
	require.NoError(t, Ping(context.Background(), gdb))

	dbtest.Close(t, gdb)
	require.Error(t, Ping(context.Background(), gdb))
}
