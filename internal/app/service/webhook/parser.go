package webhook

import (
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/fatflowers/billingsync/internal/app/service/account"
	"github.com/fatflowers/billingsync/internal/platform/revenuecat"
	"github.com/fatflowers/billingsync/pkg/tool"
	"github.com/fatflowers/billingsync/pkg/types"
)

// toAccountEvent maps a provider payload onto the state machine's event.
func toAccountEvent(req *revenuecat.WebhookRequest) *account.Event {
	e := req.Event
	ev := &account.Event{
		ID:                   req.EventID(),
		Type:                 types.ParseEventType(e.Type),
		RawType:              strings.ToUpper(e.Type),
		UserID:               lo.CoalesceOrEmpty(strings.TrimSpace(e.AppUserID), strings.TrimSpace(e.OriginalAppUserID)),
		ExpirationAt:         tool.MillisToTime(e.ExpirationAtMs),
		GracePeriodExpiresAt: tool.MillisToTime(e.GracePeriodExpirationAtMs),
		AutoResumeAt:         tool.MillisToTime(e.AutoResumeAtMs),
		ProductID:            lo.CoalesceOrEmpty(e.NewProductID, e.ProductID),
		CustomerID:           e.CustomerID(),
		SubscriptionID:       e.SubscriptionID(),
		TransferredFrom:      lo.Compact(e.TransferredFrom),
		TransferredTo:        lo.Compact(e.TransferredTo),
		Aliases:              lo.Compact(e.Aliases),
	}
	if t := tool.MillisToTime(&e.EventTimestampMs); t != nil {
		ev.OccurredAt = *t
	}
	if ev.Type == types.EventTypeTransfer {
		// the provider has no single owner for a transfer; references
		// move with the subscription
		ev.UserID = ""
		ev.CustomerID = ""
	}
	return ev
}

// logUserID is the account an audit row is filed under.
func logUserID(ev *account.Event) string {
	if ev.Type == types.EventTypeTransfer {
		return ev.TransferDestination()
	}
	return ev.UserID
}

var (
	errMissingUser     = errors.New("event has no app_user_id")
	errInvalidTransfer = errors.New("transfer needs distinct transferred_from and transferred_to")
)

// validateEvent rejects events the state machine could never apply. Only
// TEST and unrecognised types may arrive without a user.
func validateEvent(ev *account.Event) error {
	switch ev.Type {
	case types.EventTypeTest, types.EventTypeUnknown:
		return nil
	case types.EventTypeTransfer:
		from, to := ev.TransferSource(), ev.TransferDestination()
		if from == "" || to == "" || from == to {
			return errInvalidTransfer
		}
		return nil
	case types.EventTypeSubscriberAlias:
		if ev.UserID == "" && len(ev.Aliases) == 0 {
			return errMissingUser
		}
		return nil
	default:
		if ev.UserID == "" {
			return errMissingUser
		}
		return nil
	}
}
