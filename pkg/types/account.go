package types

import "github.com/samber/lo"

// AccountStatus is the billing state of a user account.
type AccountStatus string

const (
	AccountStatusTrial      AccountStatus = "trial"
	AccountStatusActive     AccountStatus = "active"
	AccountStatusActiveFree AccountStatus = "active_free"
	AccountStatusPastDue    AccountStatus = "past_due"
	AccountStatusPaused     AccountStatus = "paused"
	AccountStatusCanceled   AccountStatus = "canceled"
	AccountStatusFrozen     AccountStatus = "frozen"
)

var AllAccountStatuses = []AccountStatus{
	AccountStatusTrial,
	AccountStatusActive,
	AccountStatusActiveFree,
	AccountStatusPastDue,
	AccountStatusPaused,
	AccountStatusCanceled,
	AccountStatusFrozen,
}

func (s AccountStatus) Valid() bool {
	return lo.Contains(AllAccountStatuses, s)
}
