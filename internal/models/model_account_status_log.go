package models

import (
	"time"

	"github.com/fatflowers/billingsync/pkg/types"
	"gorm.io/datatypes"
)

// AccountStatusLog records every persisted account transition.
// Use case: troubleshooting and support.
type AccountStatusLog struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);index:idx_account_status_log_user_id,priority:1;not null" json:"user_id"`
	// EventID is nil for transitions not caused by a webhook.
	EventID *string `gorm:"column:event_id;type:varchar(128);index" json:"event_id"`
	// Reason is the event type that caused the change.
	Reason     string                           `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	FromStatus types.AccountStatus              `gorm:"column:from_status;type:varchar(32);not null" json:"from_status"`
	ToStatus   types.AccountStatus              `gorm:"column:to_status;type:varchar(32);not null" json:"to_status"`
	Before     datatypes.JSONType[*UserAccount] `gorm:"column:before;type:jsonb" json:"before"`
	After      datatypes.JSONType[*UserAccount] `gorm:"column:after;type:jsonb" json:"after"`
	CreatedAt  time.Time                        `gorm:"index:idx_account_status_log_user_id,priority:2" json:"created_at"`
}

func (AccountStatusLog) TableName() string {
	return "account_status_log"
}
