package models

// All lists every table owned by this service, in AutoMigrate order.
func All() []any {
	return []any{
		&UserAccount{},
		&AccountStatusLog{},
		&WebhookEventLog{},
		&IdempotencyKey{},
		&RateLimitBucket{},
	}
}
