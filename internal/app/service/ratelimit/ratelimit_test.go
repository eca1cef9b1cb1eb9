package ratelimit

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/internal/platform/db/dbtest"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/types"
)

func newTestService(t *testing.T, store Store, cfg *config.Config, now time.Time) *Service {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	s := NewService(cfg, store, zap.NewNop().Sugar())
	s.now = func() time.Time { return now }
	return s
}

func TestWindowFor(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 7, 42, 0, time.UTC)

	start, end := WindowFor(now, 15*time.Minute)
	require.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2025, 5, 1, 10, 15, 0, 0, time.UTC), end)

	start, end = WindowFor(now, time.Minute)
	require.Equal(t, time.Date(2025, 5, 1, 10, 7, 0, 0, time.UTC), start)
	require.Equal(t, start.Add(time.Minute), end)

	require.Equal(t, "ip:1.2.3.4|auth|1746093600000", BucketKey("ip:1.2.3.4", types.RateLimitCategoryAuth, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestIdentifier(t *testing.T) {
	require.Equal(t, "user:u1", Identifier("u1", "10.0.0.1"))
	require.Equal(t, "ip:10.0.0.1", Identifier("", "10.0.0.1"))
}

func TestClassify(t *testing.T) {
	cfg := &config.Config{RateLimit: config.RateLimitConfig{Routes: []config.RateLimitRoute{
		{Prefix: "/api/v1/account", Method: "GET", Category: types.RateLimitCategorySMS},
	}}}
	s := newTestService(t, nil, cfg, time.Now())

	require.Equal(t, types.RateLimitCategorySMS, s.Classify("GET", "/api/v1/account"))
	require.Equal(t, types.RateLimitCategoryAuth, s.Classify("POST", "/api/v1/auth/login"))
	require.Equal(t, types.RateLimitCategoryWebhook, s.Classify("POST", "/api/v2/webhooks/billing"))
	require.Equal(t, types.RateLimitCategoryPayment, s.Classify("POST", "/api/v1/subscriptions"))
	require.Equal(t, types.RateLimitCategoryRead, s.Classify("GET", "/api/v1/subscriptions"))
	require.Equal(t, types.RateLimitCategoryRead, s.Classify("HEAD", "/healthz"))
	require.Equal(t, types.RateLimitCategoryWrite, s.Classify("DELETE", "/api/v1/things"))
}

func TestRuleOverrides(t *testing.T) {
	cfg := &config.Config{RateLimit: config.RateLimitConfig{Categories: map[string]config.RateLimitRule{
		"auth":   {MaxRequests: 2, WindowMinutes: 1},
		"bogus":  {MaxRequests: 0, WindowMinutes: 1},
		"custom": {MaxRequests: 7, WindowMinutes: 2},
	}}}
	s := newTestService(t, nil, cfg, time.Now())

	require.Equal(t, Rule{MaxRequests: 2, Window: time.Minute}, s.Rule(types.RateLimitCategoryAuth))
	require.Equal(t, Rule{MaxRequests: 7, Window: 2 * time.Minute}, s.Rule("custom"))
	require.Equal(t, DefaultRules[types.RateLimitCategoryDefault], s.Rule("bogus"))
	require.Equal(t, DefaultRules[types.RateLimitCategoryDefault], s.Rule("nope"))
	// the shared default table must stay untouched
	require.Equal(t, 5, DefaultRules[types.RateLimitCategoryAuth].MaxRequests)
}

func TestCheckRateLimitBoundary(t *testing.T) {
	gdb := dbtest.New(t)
	now := time.Date(2025, 5, 1, 10, 7, 42, 0, time.UTC)
	s := newTestService(t, NewGormStore(gdb), nil, now)
	ctx := context.Background()

	rule := s.Rule(types.RateLimitCategoryAuth)
	for i := 1; i <= rule.MaxRequests; i++ {
		d := s.CheckRateLimit(ctx, "ip:1.1.1.1", types.RateLimitCategoryAuth)
		require.True(t, d.Allowed, "request %d", i)
		require.Equal(t, rule.MaxRequests-i, d.Remaining)
		require.Equal(t, time.Date(2025, 5, 1, 10, 15, 0, 0, time.UTC), d.ResetAt)
	}

	d := s.CheckRateLimit(ctx, "ip:1.1.1.1", types.RateLimitCategoryAuth)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)
	require.Equal(t, 7*time.Minute+18*time.Second, d.RetryAfter)

	// a rejected request does not grow the bucket
	var bucket models.RateLimitBucket
	require.NoError(t, gdb.Where("identifier = ?", "ip:1.1.1.1").Take(&bucket).Error)
	require.Equal(t, rule.MaxRequests, bucket.RequestCount)

	// other identifiers and categories have their own budget
	require.True(t, s.CheckRateLimit(ctx, "ip:2.2.2.2", types.RateLimitCategoryAuth).Allowed)
	require.True(t, s.CheckRateLimit(ctx, "ip:1.1.1.1", types.RateLimitCategoryRead).Allowed)

	// the next window starts fresh
	s.now = func() time.Time { return time.Date(2025, 5, 1, 10, 15, 0, 0, time.UTC) }
	d = s.CheckRateLimit(ctx, "ip:1.1.1.1", types.RateLimitCategoryAuth)
	require.True(t, d.Allowed)
	require.Equal(t, rule.MaxRequests-1, d.Remaining)
}

func TestCheckRateLimitConcurrent(t *testing.T) {
	gdb := dbtest.New(t)
	s := newTestService(t, NewGormStore(gdb), nil, time.Date(2025, 5, 1, 10, 0, 30, 0, time.UTC))

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.CheckRateLimit(context.Background(), "user:u1", types.RateLimitCategoryAuth).Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(5), allowed.Load())
}

func TestCheckRateLimitFailsOpen(t *testing.T) {
	gdb := dbtest.New(t)
	s := newTestService(t, NewGormStore(gdb), nil, time.Now().UTC())
	dbtest.Close(t, gdb)

	for i := 0; i < 10; i++ {
		d := s.CheckRateLimit(context.Background(), "ip:1.1.1.1", types.RateLimitCategoryAuth)
		require.True(t, d.Allowed)
	}
}

func TestDeleteExpired(t *testing.T) {
	gdb := dbtest.New(t)
	now := time.Date(2025, 5, 1, 10, 7, 0, 0, time.UTC)
	s := newTestService(t, NewGormStore(gdb), nil, now)
	ctx := context.Background()

	s.CheckRateLimit(ctx, "ip:1", types.RateLimitCategoryRead)
	s.CheckRateLimit(ctx, "ip:1", types.RateLimitCategoryAuth)

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	var left int64
	require.NoError(t, gdb.Model(&models.RateLimitBucket{}).Count(&left).Error)
	require.Equal(t, int64(1), left)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestService(t, NewRedisStore(client), nil, time.Now().UTC())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, s.CheckRateLimit(ctx, "ip:9", types.RateLimitCategoryAuth).Allowed)
	}
	d := s.CheckRateLimit(ctx, "ip:9", types.RateLimitCategoryAuth)
	require.False(t, d.Allowed)
	require.Greater(t, d.RetryAfter, time.Duration(0))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Greater(t, mr.TTL(keys[0]), time.Duration(0))

	down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = down.Close() })
	s.store = NewRedisStore(down)
	require.True(t, s.CheckRateLimit(ctx, "ip:9", types.RateLimitCategoryAuth).Allowed)
}

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	return gdb, mock
}

func TestGormStorePostgres(t *testing.T) {
	gdb, mock := newMockGorm(t)
	store := NewGormStore(gdb)
	b := Bucket{Key: "k", Identifier: "ip:1", Category: types.RateLimitCategoryRead, WindowStart: time.Unix(0, 0), WindowEnd: time.Unix(60, 0)}
	insert := regexp.QuoteMeta("INSERT INTO rate_limit_bucket")

	mock.ExpectQuery(insert).WillReturnRows(sqlmock.NewRows([]string{"request_count"}).AddRow(3))
	count, ok, err := store.Increment(context.Background(), b, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, count)

	mock.ExpectQuery(insert).WillReturnRows(sqlmock.NewRows([]string{"request_count"}))
	_, ok, err = store.Increment(context.Background(), b, 5)
	require.NoError(t, err)
	require.False(t, ok)

	mock.ExpectQuery(insert).WillReturnError(errors.New("connection reset by peer"))
	_, _, err = store.Increment(context.Background(), b, 5)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
