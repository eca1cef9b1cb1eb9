package models

import "time"

// IdempotencyKey caches the first successful response for a client key.
// Keys are scoped to the caller. A row with StatusCode 0 is a reservation
// held by a request that has not finished yet.
type IdempotencyKey struct {
	Scope        string    `gorm:"column:scope;type:varchar(128);primaryKey" json:"scope"`
	Key          string    `gorm:"column:idempotency_key;type:varchar(64);primaryKey" json:"idempotency_key"`
	RequestHash  string    `gorm:"column:request_hash;type:varchar(64);not null" json:"request_hash"`
	ResponseData []byte    `gorm:"column:response_data" json:"-"`
	StatusCode   int       `gorm:"column:status_code;not null" json:"status_code"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (IdempotencyKey) TableName() string { return "idempotency_key" }

// Pending reports whether the row is a reservation without a response.
func (k *IdempotencyKey) Pending() bool { return k.StatusCode == 0 }
