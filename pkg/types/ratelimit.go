package types

// RateLimitCategory groups endpoints that share one request budget.
type RateLimitCategory string

const (
	RateLimitCategoryAuth    RateLimitCategory = "auth"
	RateLimitCategorySMS     RateLimitCategory = "sms"
	RateLimitCategoryCheckIn RateLimitCategory = "checkin"
	RateLimitCategoryPayment RateLimitCategory = "payment"
	RateLimitCategoryRead    RateLimitCategory = "read"
	RateLimitCategoryWrite   RateLimitCategory = "write"
	RateLimitCategoryWebhook RateLimitCategory = "webhook"
	RateLimitCategoryDefault RateLimitCategory = "default"
)
