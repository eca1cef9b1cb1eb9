package models

import (
	"time"

	"github.com/fatflowers/billingsync/pkg/types"
)

// RateLimitBucket counts requests of one identifier and category inside one
// fixed window. BucketKey is "identifier|category|windowStartMs".
type RateLimitBucket struct {
	BucketKey    string                  `gorm:"column:bucket_key;type:varchar(255);primary_key" json:"bucket_key"`
	Identifier   string                  `gorm:"column:identifier;type:varchar(255);not null" json:"identifier"`
	Category     types.RateLimitCategory `gorm:"column:category;type:varchar(32);not null" json:"category"`
	WindowStart  int64                   `gorm:"column:window_start;not null" json:"window_start"`
	WindowEnd    time.Time               `gorm:"column:window_end;not null;index" json:"window_end"`
	RequestCount int                     `gorm:"column:request_count;not null" json:"request_count"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func (RateLimitBucket) TableName() string { return "rate_limit_bucket" }
