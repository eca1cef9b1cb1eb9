package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEventLog is the audit and dedup record of one provider event.
// EventID is unique: redeliveries update the same row.
type WebhookEventLog struct {
	ID           string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID      string         `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex" json:"event_id"`
	EventType    string         `gorm:"column:event_type;type:varchar(64);not null;index" json:"event_type"`
	UserID       *string        `gorm:"column:user_id;type:varchar(64);index" json:"user_id"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Success      bool           `gorm:"column:success;not null;index" json:"success"`
	ErrorMessage *string        `gorm:"column:error_message;type:text" json:"error_message"`
	// Attempts counts claimed deliveries, including the first.
	Attempts int    `gorm:"column:attempts;not null" json:"attempts"`
	TraceID  string `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	// ProcessingUntil is the lease held by the delivery currently processing
	// the event; nil once an outcome is recorded.
	ProcessingUntil *time.Time `gorm:"column:processing_until" json:"processing_until"`
	ProcessedAt     *time.Time `gorm:"column:processed_at;index" json:"processed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (WebhookEventLog) TableName() string { return "webhook_event_log" }
