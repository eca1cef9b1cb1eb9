package account

import (
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/pkg/types"
)

// Event is the provider-neutral view of a billing event.
type Event struct {
	ID      string
	Type    types.EventType
	RawType string
	// UserID is the account the event addresses; empty for transfers.
	UserID               string
	OccurredAt           time.Time
	ExpirationAt         *time.Time
	GracePeriodExpiresAt *time.Time
	AutoResumeAt         *time.Time
	ProductID            string
	CustomerID           string
	SubscriptionID       string
	TransferredFrom      []string
	TransferredTo        []string
	Aliases              []string
}

// TransferSource is the account losing the subscription.
func (e *Event) TransferSource() string {
	return lo.FirstOrEmpty(e.TransferredFrom)
}

// TransferDestination is the account receiving the subscription.
func (e *Event) TransferDestination() string {
	return lo.FirstOrEmpty(e.TransferredTo)
}

// Decision is the derived outcome of applying an event to a record.
type Decision struct {
	Status types.AccountStatus
	// Mutates is false for event kinds that never touch the record.
	Mutates bool
	// StampPayment sets last_payment_date to now.
	StampPayment bool
}

// DeriveStatus computes the status record should hold after ev.
//
// Precedence: an exempt account is always active_free; otherwise a trial
// ending after now keeps it in trial; otherwise the event kind decides.
// Purchases and renewals stamp the payment date whichever rule wins.
func DeriveStatus(record *models.UserAccount, ev *Event, now time.Time) Decision {
	target, mutates := statusForEvent(record, ev, now)
	d := Decision{
		Status:       target,
		Mutates:      mutates,
		StampPayment: ev.Type.IsPayment(),
	}
	switch {
	case record.Exempt():
		d.Status = types.AccountStatusActiveFree
	case record.InTrial(now):
		d.Status = types.AccountStatusTrial
	}
	return d
}

// statusForEvent maps an event kind onto a status, ignoring exemption and
// trial. Non-mutating kinds return the current status.
func statusForEvent(record *models.UserAccount, ev *Event, now time.Time) (types.AccountStatus, bool) {
	switch ev.Type {
	case types.EventTypeInitialPurchase, types.EventTypeRenewal,
		types.EventTypeUncancellation, types.EventTypeSubscriptionExtended:
		return types.AccountStatusActive, true
	case types.EventTypeCancellation:
		return types.AccountStatusCanceled, true
	case types.EventTypeExpiration:
		return types.AccountStatusFrozen, true
	case types.EventTypeBillingIssue:
		if ev.GracePeriodExpiresAt != nil && !ev.GracePeriodExpiresAt.After(now) {
			return types.AccountStatusFrozen, true
		}
		return types.AccountStatusPastDue, true
	case types.EventTypeSubscriptionPaused:
		return types.AccountStatusPaused, true
	case types.EventTypeTransfer:
		if record.ID != "" && record.ID == ev.TransferSource() {
			return types.AccountStatusFrozen, true
		}
		return types.AccountStatusActive, true
	case types.EventTypeSubscriberAlias:
		// re-sync: exemption and trial are re-evaluated, otherwise no change
		return record.AccountStatus, true
	default:
		return record.AccountStatus, false
	}
}
