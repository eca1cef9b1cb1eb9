package statistics

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/billingsync/internal/app/service/webhooklog"
	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/pkg/types"
)

type StatisticType string

const (
	// Current account population
	StatisticTypeAccountStatusCount StatisticType = "account_status_count"
	StatisticTypeExemptAccountCount StatisticType = "exempt_account_count"

	// Transition history
	StatisticTypeDailyTransitionCount StatisticType = "daily_transition_count"

	// Webhook audit log
	StatisticTypeWebhookEventCount      StatisticType = "webhook_event_count"
	StatisticTypeDailyWebhookEventCount StatisticType = "daily_webhook_event_count"
)

// DefaultDataItems is what an empty request returns.
var DefaultDataItems = []StatisticType{
	StatisticTypeAccountStatusCount,
	StatisticTypeExemptAccountCount,
	StatisticTypeWebhookEventCount,
}

// filterFields lists, per statistic, the columns a filter may reference.
// Filters on other columns are skipped for that statistic.
var filterFields = map[StatisticType][]string{
	StatisticTypeDailyTransitionCount:   {"user_id", "reason", "from_status", "to_status", "created_at"},
	StatisticTypeDailyWebhookEventCount: webhooklog.ScannableFields,
}

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type StatisticRequest struct {
	Filters   []types.CommonFilter `json:"filters"`
	DataItems []*StatisticDataItem `json:"data_items"`
}

// Validate rejects filters no statistic can apply.
func (r *StatisticRequest) Validate() error {
	allowed := lo.Uniq(lo.Flatten(lo.Values(filterFields)))
	for i := range r.Filters {
		if err := r.Filters[i].Validate(allowed); err != nil {
			return err
		}
	}
	return nil
}

// filtersFor returns the filters applicable to statisticType.
func (r *StatisticRequest) filtersFor(statisticType StatisticType) []clause.Expression {
	allowed, ok := filterFields[statisticType]
	if !ok {
		return nil
	}
	var out []clause.Expression
	for i := range r.Filters {
		if r.Filters[i].Validate(allowed) == nil {
			out = append(out, &r.Filters[i])
		}
	}
	return out
}

type StatisticResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

// Service provides statistics operations
type Service struct {
	db     *gorm.DB
	events *webhooklog.Service
}

func New(db *gorm.DB, events *webhooklog.Service) *Service { return &Service{db: db, events: events} }

// dayExpr formats a timestamp column as YYYY-MM-DD on the connected dialect.
func (s *Service) dayExpr(column string) string {
	if s.db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
	}
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
}

func (s *Service) getAccountStatusCount(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.UserAccount{}).
		Select("account_status AS label, count(*) AS value").
		Group("account_status").
		Order("label")
	if err := q.Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getExemptAccountCount(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.UserAccount{}).
		Where("is_member = ? OR grandfathered_free = ?", true, true).
		Count(&n).Error
	if err != nil {
		return nil, err
	}
	return []StatisticResponseDataItem{{Value: n}}, nil
}

func (s *Service) getDailyTransitionCount(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	day := s.dayExpr("created_at")
	q := s.db.WithContext(ctx).Model(&models.AccountStatusLog{}).
		Select(day + " AS date, to_status AS label, count(*) AS value")
	if exprs := request.filtersFor(StatisticTypeDailyTransitionCount); len(exprs) > 0 {
		q = q.Where(clause.Where{Exprs: exprs})
	}
	err := q.Group(day).Group("to_status").
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "date"}, Desc: true},
			{Column: clause.Column{Name: "label"}},
		}}).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getWebhookEventCount(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	c, err := s.events.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return []StatisticResponseDataItem{
		{Label: "total", Value: c.Total},
		{Label: "succeeded", Value: c.Succeeded},
		{Label: "failed", Value: c.Failed},
		{Label: "pending", Value: c.Pending},
	}, nil
}

func (s *Service) getDailyWebhookEventCount(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	day := s.dayExpr("created_at")
	q := s.db.WithContext(ctx).Model(&models.WebhookEventLog{}).
		Select(day + " AS date, event_type AS label, count(*) AS value")
	if exprs := request.filtersFor(StatisticTypeDailyWebhookEventCount); len(exprs) > 0 {
		q = q.Where(clause.Where{Exprs: exprs})
	}
	err := q.Group(day).Group("event_type").
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "date"}, Desc: true},
			{Column: clause.Column{Name: "label"}},
		}}).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, request *StatisticRequest, dataItem *StatisticDataItem) ([]StatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeAccountStatusCount:
		return s.getAccountStatusCount(ctx, request)
	case StatisticTypeExemptAccountCount:
		return s.getExemptAccountCount(ctx, request)
	case StatisticTypeDailyTransitionCount:
		return s.getDailyTransitionCount(ctx, request)
	case StatisticTypeWebhookEventCount:
		return s.getWebhookEventCount(ctx, request)
	case StatisticTypeDailyWebhookEventCount:
		return s.getDailyWebhookEventCount(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// GetStatistic computes every requested data item concurrently.
func (s *Service) GetStatistic(ctx context.Context, request *StatisticRequest) (*StatisticResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	items := request.DataItems
	if len(items) == 0 {
		items = lo.Map(DefaultDataItems, func(id StatisticType, _ int) *StatisticDataItem {
			return &StatisticDataItem{ID: id}
		})
	}

	type result struct {
		id    StatisticType
		items []StatisticResponseDataItem
		err   error
	}
	var wg sync.WaitGroup
	resChan := make(chan result, len(items))
	for _, item := range items {
		wg.Add(1)
		go func(di *StatisticDataItem) {
			defer wg.Done()
			res, err := s.getStatistic(ctx, request, di)
			resChan <- result{id: di.ID, items: res, err: err}
		}(item)
	}
	wg.Wait()
	close(resChan)

	results := make(map[StatisticType][]StatisticResponseDataItem, len(items))
	for r := range resChan {
		if r.err != nil {
			return nil, fmt.Errorf("%s: %w", r.id, r.err)
		}
		results[r.id] = r.items
	}
	return &StatisticResponse{DataItems: results}, nil
}
