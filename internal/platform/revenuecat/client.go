package revenuecat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cfgpkg "github.com/fatflowers/billingsync/pkg/config"
)

var ErrNotConfigured = errors.New("billing provider api key is not configured")

// APIError is a non-2xx answer from the provider REST API.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("billing provider: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(cfg *cfgpkg.Config) *Client {
	timeout := cfg.BillingProvider.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(cfg.BillingProvider.BaseURL, "/"),
		APIKey:     strings.TrimSpace(cfg.BillingProvider.APIKey),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// ReceiptRequest registers a store purchase for AppUserID.
type ReceiptRequest struct {
	AppUserID  string `json:"app_user_id"`
	FetchToken string `json:"fetch_token"`
	ProductID  string `json:"product_id,omitempty"`
	// Platform is sent as the X-Platform header (ios, android, stripe).
	Platform string `json:"-"`
}

type Subscriber struct {
	OriginalAppUserID string                            `json:"original_app_user_id"`
	Subscriptions     map[string]SubscriberSubscription `json:"subscriptions"`
}

type SubscriberSubscription struct {
	StoreTransactionID      string     `json:"store_transaction_id"`
	OriginalPurchaseDate    *time.Time `json:"original_purchase_date"`
	PurchaseDate            *time.Time `json:"purchase_date"`
	ExpiresDate             *time.Time `json:"expires_date"`
	Store                   string     `json:"store"`
	IsSandbox               bool       `json:"is_sandbox"`
	UnsubscribeDetectedAt   *time.Time `json:"unsubscribe_detected_at"`
	BillingIssuesDetectedAt *time.Time `json:"billing_issues_detected_at"`
}

type receiptResponse struct {
	Subscriber Subscriber `json:"subscriber"`
}

// PostReceipt calls POST /v1/receipts and returns the updated subscriber.
func (c *Client) PostReceipt(ctx context.Context, r *ReceiptRequest) (*Subscriber, error) {
	if c.APIKey == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal receipt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/receipts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build receipt request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.Platform != "" {
		req.Header.Set("X-Platform", r.Platform)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post receipt: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read receipt response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}
	var out receiptResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode receipt response: %w", err)
	}
	return &out.Subscriber, nil
}
