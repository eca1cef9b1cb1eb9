package webhooklog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/tool"
	"github.com/fatflowers/billingsync/pkg/types"
)

type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	lease time.Duration
	now   func() time.Time
}

func New(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	lease := cfg.Webhook.ProcessingLease
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	return &Service{db: db, log: log, lease: lease, now: func() time.Time { return time.Now().UTC() }}
}

// IsDuplicate reports whether eventID was already processed successfully
// within the last windowHours. An empty eventType matches any type; a
// non-positive window means no time bound.
func (s *Service) IsDuplicate(ctx context.Context, eventID, eventType string, windowHours int) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.WebhookEventLog{}).
		Where("event_id = ? AND success = ?", eventID, true)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	if windowHours > 0 {
		q = q.Where("processed_at >= ?", s.now().Add(-time.Duration(windowHours)*time.Hour))
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check duplicate %s: %w", eventID, err)
	}
	return count > 0, nil
}

type PendingEvent struct {
	EventID   string
	EventType string
	UserID    string
	Payload   []byte
}

// LogEventPending claims eventID for processing. It inserts a pending row,
// or re-claims an existing one that has not succeeded and whose lease has
// lapsed. claimed is false when another delivery succeeded or is still
// processing.
func (s *Service) LogEventPending(ctx context.Context, ev *PendingEvent) (bool, error) {
	now := s.now()
	leaseUntil := now.Add(s.lease)
	traceID := logctx.TraceID(ctx)
	row := &models.WebhookEventLog{
		ID:              tool.GenerateUUIDV7(),
		EventID:         ev.EventID,
		EventType:       ev.EventType,
		UserID:          tool.NilIfEmpty(ev.UserID),
		Payload:         datatypes.JSON(ev.Payload),
		Success:         false,
		Attempts:        1,
		TraceID:         traceID,
		ProcessingUntil: &leaseUntil,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	table := row.TableName()
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"attempts":         gorm.Expr(table+".attempts + 1"),
			"processing_until": leaseUntil,
			"error_message":    nil,
			"payload":          row.Payload,
			"trace_id":         traceID,
			"updated_at":       now,
		}),
		Where: clause.Where{Exprs: []clause.Expression{clause.Expr{
			SQL:  table + ".success = ? AND (" + table + ".processing_until IS NULL OR " + table + ".processing_until < ?)",
			Vars: []any{false, now},
		}}},
	}).Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("log pending %s: %w", ev.EventID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkEventOutcome records the result of processing and releases the lease.
// A failure never overwrites a recorded success.
func (s *Service) MarkEventOutcome(ctx context.Context, eventID string, success bool, errorMessage string) error {
	now := s.now()
	updates := map[string]any{
		"success":          success,
		"error_message":    tool.NilIfEmpty(errorMessage),
		"processing_until": nil,
		"updated_at":       now,
	}
	q := s.db.WithContext(ctx).Model(&models.WebhookEventLog{}).Where("event_id = ?", eventID)
	if success {
		updates["processed_at"] = now
	} else {
		q = q.Where("success = ?", false)
	}
	if err := q.Updates(updates).Error; err != nil {
		return fmt.Errorf("mark outcome %s: %w", eventID, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, eventID string) (*models.WebhookEventLog, error) {
	var row models.WebhookEventLog
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ScannableFields are the columns admin scans may filter and sort on.
var ScannableFields = []string{"event_id", "event_type", "user_id", "success", "attempts", "created_at", "updated_at", "processed_at", "processing_until"}

type ScanRequest struct {
	Filters  []types.CommonFilter `json:"filters"`
	Offset   int                  `json:"offset" binding:"gte=0"`
	Limit    int                  `json:"limit" binding:"gte=0,lte=500"`
	OrderBy  string               `json:"order_by"`
	OrderAsc bool                 `json:"order_asc"`
}

type ScanResponse struct {
	Total int64                     `json:"total"`
	Items []*models.WebhookEventLog `json:"items"`
}

// Scan returns a filtered page of the audit log, newest first by default.
func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	for i := range req.Filters {
		if err := req.Filters[i].Validate(ScannableFields); err != nil {
			return nil, err
		}
	}
	order := "created_at"
	if req.OrderBy != "" {
		if err := (&types.CommonFilter{Field: req.OrderBy}).Validate(ScannableFields); err != nil {
			return nil, err
		}
		order = req.OrderBy
	}
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.WebhookEventLog{})
		for i := range req.Filters {
			q = q.Where(clause.Where{Exprs: []clause.Expression{&req.Filters[i]}})
		}
		return q
	}
	var resp ScanResponse
	if err := filtered().Count(&resp.Total).Error; err != nil {
		return nil, fmt.Errorf("count webhook events: %w", err)
	}
	err := filtered().Order(clause.OrderByColumn{Column: clause.Column{Name: order}, Desc: !req.OrderAsc}).
		Offset(req.Offset).Limit(limit).
		Find(&resp.Items).Error
	if err != nil {
		return nil, fmt.Errorf("scan webhook events: %w", err)
	}
	return &resp, nil
}

type Counts struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Pending   int64 `json:"pending"`
}

// Counts summarises the audit log. Failed rows carry an error and no live
// lease; every other unsuccessful row is pending.
func (s *Service) Counts(ctx context.Context) (*Counts, error) {
	var rows []struct {
		Success bool
		Failed  bool
		N       int64
	}
	err := s.db.WithContext(ctx).Model(&models.WebhookEventLog{}).
		Select("success, (error_message IS NOT NULL AND processing_until IS NULL) AS failed, COUNT(*) AS n").
		Group("success, (error_message IS NOT NULL AND processing_until IS NULL)").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count webhook events: %w", err)
	}
	var c Counts
	for _, r := range rows {
		c.Total += r.N
		switch {
		case r.Success:
			c.Succeeded += r.N
		case r.Failed:
			c.Failed += r.N
		default:
			c.Pending += r.N
		}
	}
	return &c, nil
}
