package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/metrics"
	"github.com/fatflowers/billingsync/pkg/types"
)

type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultRules is the built-in category table; rate_limit.categories
// overrides individual entries.
var DefaultRules = map[types.RateLimitCategory]Rule{
	types.RateLimitCategoryAuth:    {MaxRequests: 5, Window: 15 * time.Minute},
	types.RateLimitCategorySMS:     {MaxRequests: 10, Window: 60 * time.Minute},
	types.RateLimitCategoryCheckIn: {MaxRequests: 30, Window: 60 * time.Minute},
	types.RateLimitCategoryPayment: {MaxRequests: 10, Window: 60 * time.Minute},
	types.RateLimitCategoryRead:    {MaxRequests: 120, Window: time.Minute},
	types.RateLimitCategoryWrite:   {MaxRequests: 30, Window: time.Minute},
	types.RateLimitCategoryWebhook: {MaxRequests: 300, Window: time.Minute},
	types.RateLimitCategoryDefault: {MaxRequests: 60, Window: time.Minute},
}

// DefaultRoutes maps route prefixes onto categories. Configured routes are
// consulted first.
var DefaultRoutes = []config.RateLimitRoute{
	{Prefix: "/api/v1/auth", Category: types.RateLimitCategoryAuth},
	{Prefix: "/api/v1/sms", Category: types.RateLimitCategorySMS},
	{Prefix: "/api/v1/checkins", Category: types.RateLimitCategoryCheckIn},
	{Prefix: "/api/v1/subscriptions", Method: http.MethodPost, Category: types.RateLimitCategoryPayment},
	{Prefix: "/api/v2/webhooks", Category: types.RateLimitCategoryWebhook},
}

// Decision is the outcome of one check. RetryAfter is set only when the
// request is rejected.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Bucket is one fixed window of one identifier/category pair.
type Bucket struct {
	Key         string
	Identifier  string
	Category    types.RateLimitCategory
	WindowStart time.Time
	WindowEnd   time.Time
}

// WindowFor aligns now to the start of its fixed window.
func WindowFor(now time.Time, window time.Duration) (start, end time.Time) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = time.Minute.Milliseconds()
	}
	startMs := now.UnixMilli() / ms * ms
	start = time.UnixMilli(startMs).UTC()
	return start, start.Add(time.Duration(ms) * time.Millisecond)
}

func BucketKey(identifier string, category types.RateLimitCategory, windowStart time.Time) string {
	return fmt.Sprintf("%s|%s|%d", identifier, category, windowStart.UnixMilli())
}

// Identifier is "user:<id>" for authenticated callers, else "ip:<addr>".
func Identifier(userID, clientIP string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP
}

type Service struct {
	store   Store
	rules   map[types.RateLimitCategory]Rule
	routes  []config.RateLimitRoute
	timeout time.Duration
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(cfg *config.Config, store Store, log *zap.SugaredLogger) *Service {
	rules := make(map[types.RateLimitCategory]Rule, len(DefaultRules))
	for k, v := range DefaultRules {
		rules[k] = v
	}
	for name, r := range cfg.RateLimit.Categories {
		if r.MaxRequests <= 0 || r.WindowMinutes <= 0 {
			log.Warnw("ratelimit_category_ignored", "category", name, "max_requests", r.MaxRequests, "window_minutes", r.WindowMinutes)
			continue
		}
		rules[types.RateLimitCategory(strings.ToLower(name))] = Rule{
			MaxRequests: r.MaxRequests,
			Window:      time.Duration(r.WindowMinutes) * time.Minute,
		}
	}
	timeout := cfg.RateLimit.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Service{
		store:   store,
		rules:   rules,
		routes:  append(append([]config.RateLimitRoute{}, cfg.RateLimit.Routes...), DefaultRoutes...),
		timeout: timeout,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Rule returns the rule of category, or the default rule for unknown ones.
func (s *Service) Rule(category types.RateLimitCategory) Rule {
	if r, ok := s.rules[category]; ok {
		return r
	}
	return s.rules[types.RateLimitCategoryDefault]
}

// Classify maps a request onto its category. Unlisted routes are read for
// safe methods and write otherwise.
func (s *Service) Classify(method, path string) types.RateLimitCategory {
	for _, r := range s.routes {
		if r.Method != "" && !strings.EqualFold(r.Method, method) {
			continue
		}
		if strings.HasPrefix(path, r.Prefix) {
			return r.Category
		}
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return types.RateLimitCategoryRead
	default:
		return types.RateLimitCategoryWrite
	}
}

// CheckRateLimit counts one request against the caller's current window.
// Store failures allow the request.
func (s *Service) CheckRateLimit(ctx context.Context, identifier string, category types.RateLimitCategory) Decision {
	rule := s.Rule(category)
	now := s.now()
	start, end := WindowFor(now, rule.Window)
	b := Bucket{
		Key:         BucketKey(identifier, category, start),
		Identifier:  identifier,
		Category:    category,
		WindowStart: start,
		WindowEnd:   end,
	}
	d := Decision{Limit: rule.MaxRequests, ResetAt: end}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	count, ok, err := s.store.Increment(ctx, b, rule.MaxRequests)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("ratelimit_store_error", "category", category, "identifier", identifier, "err", err)
		metrics.RateLimitDecisions.WithLabelValues(string(category), "fail_open").Inc()
		d.Allowed = true
		d.Remaining = max(rule.MaxRequests-1, 0)
		return d
	}
	if !ok {
		metrics.RateLimitDecisions.WithLabelValues(string(category), "rejected").Inc()
		d.Remaining = 0
		d.RetryAfter = end.Sub(now)
		return d
	}
	metrics.RateLimitDecisions.WithLabelValues(string(category), "allowed").Inc()
	d.Allowed = true
	d.Remaining = max(rule.MaxRequests-count, 0)
	return d
}

// DeleteExpired removes buckets whose window ended before now.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}
