package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/metrics"
	"github.com/fatflowers/billingsync/pkg/tool"
)

// ReplayHeader marks a response served from the cache.
const ReplayHeader = "Idempotent-Replayed"

var ErrInvalidKey = errors.New("idempotency key must be a UUID")

type CachedResponse struct {
	StatusCode int
	Body       []byte
}

// CheckResult tells the caller what to do with a keyed request. Exactly one
// of Proceed, Cached, Conflict and InProgress is set.
type CheckResult struct {
	Proceed    bool
	Cached     *CachedResponse
	Conflict   bool
	InProgress bool
}

type Service struct {
	db          *gorm.DB
	ttl         time.Duration
	lockTimeout time.Duration
	log         *zap.SugaredLogger
	now         func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	ttl := cfg.Idempotency.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	lock := cfg.Idempotency.LockTimeout
	if lock <= 0 {
		lock = time.Minute
	}
	return &Service{db: db, ttl: ttl, lockTimeout: lock, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func ValidateKey(key string) error {
	if !tool.IsCanonicalUUID(key) {
		return ErrInvalidKey
	}
	return nil
}

// replaceExpired lets an insert take over a row only once it has expired,
// so a live reservation or cached response is never overwritten.
func replaceExpired(now time.Time) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "idempotency_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"request_hash", "response_data", "status_code", "expires_at", "created_at", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lte{Column: clause.Column{Table: models.IdempotencyKey{}.TableName(), Name: "expires_at"}, Value: now},
		}},
	}
}

// CheckKey reserves key within scope for this request. The reservation is a
// single conditional insert, so of two concurrent requests with the same key
// only one proceeds. The other sees the reservation (InProgress), a cached
// response (Cached) or a different body (Conflict).
//
// An empty key proceeds without a lookup; a malformed key returns
// ErrInvalidKey. Store failures are logged and the request proceeds.
func (s *Service) CheckKey(ctx context.Context, scope, key string, body []byte) (*CheckResult, error) {
	if key == "" {
		return &CheckResult{Proceed: true}, nil
	}
	if err := ValidateKey(key); err != nil {
		metrics.IdempotencyOutcomes.WithLabelValues("invalid").Inc()
		return nil, err
	}
	lg := logctx.FromCtx(ctx, s.log)
	hash := HashBody(body)
	now := s.now()

	res := s.db.WithContext(ctx).Clauses(replaceExpired(now)).Create(&models.IdempotencyKey{
		Scope:       scope,
		Key:         key,
		RequestHash: hash,
		ExpiresAt:   now.Add(s.lockTimeout),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if res.Error != nil {
		lg.Warnw("idempotency_reserve_failed", "idempotency_key", key, "err", res.Error)
		metrics.IdempotencyOutcomes.WithLabelValues("fail_open").Inc()
		return &CheckResult{Proceed: true}, nil
	}
	if res.RowsAffected > 0 {
		metrics.IdempotencyOutcomes.WithLabelValues("proceed").Inc()
		return &CheckResult{Proceed: true}, nil
	}

	var entry models.IdempotencyKey
	err := s.db.WithContext(ctx).
		Where("scope = ? AND idempotency_key = ?", scope, key).
		Take(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// swept between the insert and the read
		metrics.IdempotencyOutcomes.WithLabelValues("proceed").Inc()
		return &CheckResult{Proceed: true}, nil
	case err != nil:
		lg.Warnw("idempotency_lookup_failed", "idempotency_key", key, "err", err)
		metrics.IdempotencyOutcomes.WithLabelValues("fail_open").Inc()
		return &CheckResult{Proceed: true}, nil
	}

	switch {
	case entry.RequestHash != hash:
		metrics.IdempotencyOutcomes.WithLabelValues("conflict").Inc()
		return &CheckResult{Conflict: true}, nil
	case entry.Pending():
		metrics.IdempotencyOutcomes.WithLabelValues("in_progress").Inc()
		return &CheckResult{InProgress: true}, nil
	}
	metrics.IdempotencyOutcomes.WithLabelValues("replayed").Inc()
	return &CheckResult{Cached: &CachedResponse{StatusCode: entry.StatusCode, Body: entry.ResponseData}}, nil
}

// StoreKey completes the reservation made by CheckKey. A 2xx response is
// cached for the TTL; any other status releases the key so the client may
// retry. Without a reservation (CheckKey failed open) a 2xx response is
// inserted only if no live entry exists.
func (s *Service) StoreKey(ctx context.Context, scope, key string, body []byte, statusCode int, response []byte) error {
	if key == "" {
		return nil
	}
	hash := HashBody(body)
	now := s.now()
	reservation := s.db.WithContext(ctx).Model(&models.IdempotencyKey{}).
		Where("scope = ? AND idempotency_key = ? AND request_hash = ? AND status_code = 0", scope, key, hash)

	if statusCode < 200 || statusCode > 299 {
		if err := reservation.Delete(&models.IdempotencyKey{}).Error; err != nil {
			return fmt.Errorf("release idempotency key: %w", err)
		}
		return nil
	}

	res := reservation.Updates(map[string]any{
		"response_data": response,
		"status_code":   statusCode,
		"expires_at":    now.Add(s.ttl),
		"updated_at":    now,
	})
	if res.Error != nil {
		return fmt.Errorf("store idempotency key: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.IdempotencyOutcomes.WithLabelValues("stored").Inc()
		return nil
	}

	res = s.db.WithContext(ctx).Clauses(replaceExpired(now)).Create(&models.IdempotencyKey{
		Scope:        scope,
		Key:          key,
		RequestHash:  hash,
		ResponseData: response,
		StatusCode:   statusCode,
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if res.Error != nil {
		return fmt.Errorf("store idempotency key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		logctx.FromCtx(ctx, s.log).Infow("idempotency_key_already_stored", "idempotency_key", key)
		return nil
	}
	metrics.IdempotencyOutcomes.WithLabelValues("stored").Inc()
	return nil
}

// DeleteExpired removes entries past their TTL.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
