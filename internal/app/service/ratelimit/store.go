package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/pkg/config"
)

// Store performs the conditional increment of a bucket as one atomic step.
type Store interface {
	// Increment adds one request to b unless it already holds limit. It
	// returns the count after the increment and whether the request fit.
	Increment(ctx context.Context, b Bucket, limit int) (count int, ok bool, err error)
	// DeleteExpired drops buckets whose window ended before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NewStore picks the backend named by rate_limit.backend.
func NewStore(cfg *config.Config, db *gorm.DB, rdb *redis.Client) Store {
	if cfg.RateLimit.Backend == "redis" {
		return NewRedisStore(rdb)
	}
	return NewGormStore(db)
}

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store { return &gormStore{db: db} }

// The WHERE on the update arm makes a full bucket return no row, so the
// check and the increment cannot interleave with another request.
const incrementSQL = `INSERT INTO rate_limit_bucket
    (bucket_key, identifier, category, window_start, window_end, request_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?)
ON CONFLICT (bucket_key) DO UPDATE
    SET request_count = rate_limit_bucket.request_count + 1,
        updated_at = excluded.updated_at
    WHERE rate_limit_bucket.request_count < ?
RETURNING request_count`

func (s *gormStore) Increment(ctx context.Context, b Bucket, limit int) (int, bool, error) {
	now := time.Now().UTC()
	var count int
	err := s.db.WithContext(ctx).
		Raw(incrementSQL, b.Key, b.Identifier, string(b.Category), b.WindowStart.UnixMilli(), b.WindowEnd, now, now, limit).
		Row().
		Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return limit, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment bucket %s: %w", b.Key, err)
	}
	return count, true, nil
}

func (s *gormStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("window_end <= ?", now).Delete(&models.RateLimitBucket{})
	return res.RowsAffected, res.Error
}

type redisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) Store { return &redisStore{client: client} }

// KEYS[1] bucket, ARGV[1] limit, ARGV[2] ttl in ms. Returns -1 when full.
var incrementScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return -1
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return current
`)

func (s *redisStore) Increment(ctx context.Context, b Bucket, limit int) (int, bool, error) {
	ttl := time.Until(b.WindowEnd)
	if ttl < time.Second {
		ttl = time.Second
	}
	n, err := incrementScript.Run(ctx, s.client, []string{"ratelimit:" + b.Key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return 0, false, fmt.Errorf("increment bucket %s: %w", b.Key, err)
	}
	if n < 0 {
		return limit, false, nil
	}
	return n, true, nil
}

// DeleteExpired is a no-op: redis expires buckets itself.
func (s *redisStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
