package revenuecat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// WebhookRequest is the body the provider POSTs for every lifecycle event.
// The event id may arrive at the top level or inside the event object.
type WebhookRequest struct {
	ID         string        `json:"id"`
	APIVersion string        `json:"api_version"`
	Event      *WebhookEvent `json:"event" validate:"required"`
}

type WebhookEvent struct {
	ID                        string   `json:"id"`
	Type                      string   `json:"type" validate:"required"`
	AppUserID                 string   `json:"app_user_id"`
	OriginalAppUserID         string   `json:"original_app_user_id"`
	Aliases                   []string `json:"aliases"`
	ProductID                 string   `json:"product_id"`
	NewProductID              string   `json:"new_product_id"`
	Store                     string   `json:"store"`
	Environment               string   `json:"environment"`
	TransactionID             string   `json:"transaction_id"`
	OriginalTransactionID     string   `json:"original_transaction_id"`
	EventTimestampMs          int64    `json:"event_timestamp_ms"`
	PurchasedAtMs             *int64   `json:"purchased_at_ms"`
	ExpirationAtMs            *int64   `json:"expiration_at_ms"`
	GracePeriodExpirationAtMs *int64   `json:"grace_period_expiration_at_ms"`
	AutoResumeAtMs            *int64   `json:"auto_resume_at_ms"`
	CancelReason              string   `json:"cancel_reason"`
	ExpirationReason          string   `json:"expiration_reason"`
	TransferredFrom           []string `json:"transferred_from"`
	TransferredTo             []string `json:"transferred_to"`
	// SubscriberAttributes carries provider-side customer metadata; the
	// customer id attribute maps onto billing_customer_id.
	SubscriberAttributes map[string]SubscriberAttribute `json:"subscriber_attributes"`
}

type SubscriberAttribute struct {
	Value       string `json:"value"`
	UpdatedAtMs int64  `json:"updated_at_ms"`
}

// EventID returns the top-level id, falling back to event.id.
func (r *WebhookRequest) EventID() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	if r.Event != nil {
		return strings.TrimSpace(r.Event.ID)
	}
	return ""
}

// CustomerID prefers the $customerId attribute over the original app user id.
func (e *WebhookEvent) CustomerID() string {
	if a, ok := e.SubscriberAttributes["$customerId"]; ok && a.Value != "" {
		return a.Value
	}
	return e.OriginalAppUserID
}

// SubscriptionID is the provider's stable id for the purchase chain.
func (e *WebhookEvent) SubscriptionID() string {
	if e.OriginalTransactionID != "" {
		return e.OriginalTransactionID
	}
	return e.TransactionID
}

// ParseWebhook decodes and structurally validates a webhook body. Every
// failure wraps ErrInvalidPayload.
func ParseWebhook(raw []byte, v *validator.Validate) (*WebhookRequest, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	var req WebhookRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := v.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if req.EventID() == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrInvalidPayload)
	}
	req.Event.Type = strings.TrimSpace(req.Event.Type)
	if req.Event.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidPayload)
	}
	return &req, nil
}
