package models

import (
	"time"

	"github.com/fatflowers/billingsync/pkg/types"
)

// UserAccount is the billing record of one user. Rows are created by the
// user-facing product and never deleted here; the account service owns every
// status change.
type UserAccount struct {
	ID            string              `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	AccountStatus types.AccountStatus `gorm:"column:account_status;type:varchar(32);not null;index" json:"account_status"`
	// IsMember and GrandfatheredFree exempt the account from billing; it
	// resolves to active_free whatever the provider reports.
	IsMember          bool       `gorm:"column:is_member;not null" json:"is_member"`
	GrandfatheredFree bool       `gorm:"column:grandfathered_free;not null" json:"grandfathered_free"`
	TrialEndDate      *time.Time `gorm:"column:trial_end_date" json:"trial_end_date"`
	LastPaymentDate   *time.Time `gorm:"column:last_payment_date" json:"last_payment_date"`
	// Billing provider references, detached from the source account on transfer.
	BillingCustomerID     *string   `gorm:"column:billing_customer_id;type:varchar(128);index" json:"billing_customer_id"`
	BillingSubscriptionID *string   `gorm:"column:billing_subscription_id;type:varchar(128)" json:"billing_subscription_id"`
	PhoneNumber           *string   `gorm:"column:phone_number;type:varchar(32)" json:"phone_number,omitempty"`
	PushToken             *string   `gorm:"column:push_token;type:varchar(255)" json:"push_token,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (UserAccount) TableName() string {
	return "user_account"
}

func (u *UserAccount) Exempt() bool {
	return u != nil && (u.IsMember || u.GrandfatheredFree)
}

// InTrial reports whether the trial end lies strictly after now.
func (u *UserAccount) InTrial(now time.Time) bool {
	return u != nil && u.TrialEndDate != nil && u.TrialEndDate.After(now)
}

// Clone returns a shallow copy safe to mutate field by field; pointer
// fields are reassigned, never written through.
func (u *UserAccount) Clone() *UserAccount {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
