package types

import (
	"strings"

	"github.com/samber/lo"
)

// EventType is the billing provider's lifecycle event kind.
type EventType string

const (
	EventTypeInitialPurchase      EventType = "INITIAL_PURCHASE"
	EventTypeRenewal              EventType = "RENEWAL"
	EventTypeUncancellation       EventType = "UNCANCELLATION"
	EventTypeSubscriptionExtended EventType = "SUBSCRIPTION_EXTENDED"
	EventTypeCancellation         EventType = "CANCELLATION"
	EventTypeExpiration           EventType = "EXPIRATION"
	EventTypeBillingIssue         EventType = "BILLING_ISSUE"
	EventTypeSubscriptionPaused   EventType = "SUBSCRIPTION_PAUSED"
	EventTypeTransfer             EventType = "TRANSFER"
	EventTypeProductChange        EventType = "PRODUCT_CHANGE"
	EventTypeTest                 EventType = "TEST"
	EventTypeSubscriberAlias      EventType = "SUBSCRIBER_ALIAS"

	// EventTypeUnknown is any type string the provider may add later.
	EventTypeUnknown EventType = "UNKNOWN"
)

var KnownEventTypes = []EventType{
	EventTypeInitialPurchase,
	EventTypeRenewal,
	EventTypeUncancellation,
	EventTypeSubscriptionExtended,
	EventTypeCancellation,
	EventTypeExpiration,
	EventTypeBillingIssue,
	EventTypeSubscriptionPaused,
	EventTypeTransfer,
	EventTypeProductChange,
	EventTypeTest,
	EventTypeSubscriberAlias,
}

// ParseEventType maps a raw provider type string onto the closed enum.
// Anything unrecognised becomes EventTypeUnknown.
func ParseEventType(raw string) EventType {
	t := EventType(strings.ToUpper(strings.TrimSpace(raw)))
	if lo.Contains(KnownEventTypes, t) {
		return t
	}
	return EventTypeUnknown
}

// IsPayment reports whether the event records a successful charge.
func (t EventType) IsPayment() bool {
	return t == EventTypeInitialPurchase || t == EventTypeRenewal
}
