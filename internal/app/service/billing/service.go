// Package billing confirms client-side purchases with the billing provider.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/app/service/account"
	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/internal/platform/revenuecat"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/metrics"
)

var (
	ErrNoActiveSubscription = errors.New("no active subscription for product")
	// ErrProvider wraps billing provider failures; callers answer 502.
	ErrProvider = errors.New("billing provider error")
)

var storePlatforms = map[string]string{
	"app_store":  "ios",
	"play_store": "android",
	"stripe":     "stripe",
}

type CreateSubscriptionRequest struct {
	FetchToken string `json:"fetch_token" binding:"required"`
	ProductID  string `json:"product_id" binding:"required"`
	Store      string `json:"store" binding:"required,oneof=app_store play_store stripe"`
}

type Service struct {
	client   *revenuecat.Client
	accounts *account.Service
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(client *revenuecat.Client, accounts *account.Service, log *zap.SugaredLogger) *Service {
	return &Service{client: client, accounts: accounts, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// CreateSubscription registers the store receipt with the provider and
// activates the account when the provider reports a live subscription for
// the product.
func (s *Service) CreateSubscription(ctx context.Context, userID string, req *CreateSubscriptionRequest) (*models.UserAccount, error) {
	start := time.Now()
	defer metrics.ObserveSince("billing", "create_subscription", start)
	lg := logctx.FromCtx(ctx, s.log).With("user_id", userID, "product_id", req.ProductID)

	// fail before calling the provider for accounts we do not know
	if _, err := s.accounts.GetAccount(ctx, userID); err != nil {
		return nil, err
	}

	sub, err := s.client.PostReceipt(ctx, &revenuecat.ReceiptRequest{
		AppUserID:  userID,
		FetchToken: req.FetchToken,
		ProductID:  req.ProductID,
		Platform:   storePlatforms[req.Store],
	})
	if err != nil {
		lg.Errorw("billing_receipt_failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	item, ok := sub.Subscriptions[req.ProductID]
	if !ok || (item.ExpiresDate != nil && !item.ExpiresDate.After(s.now())) {
		lg.Warnw("billing_subscription_inactive", "found", ok)
		return nil, fmt.Errorf("%w: %s", ErrNoActiveSubscription, req.ProductID)
	}

	customerID := sub.OriginalAppUserID
	if customerID == "" {
		customerID = userID
	}
	u, err := s.accounts.ApplyPurchase(ctx, userID, customerID, item.StoreTransactionID, req.ProductID)
	if err != nil {
		return nil, err
	}
	lg.Infow("billing_subscription_created", "status", u.AccountStatus)
	return u, nil
}
