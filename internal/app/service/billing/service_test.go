package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/billingsync/internal/app/service/account"
	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/internal/platform/db/dbtest"
	"github.com/fatflowers/billingsync/internal/platform/revenuecat"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/types"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *gorm.DB) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gdb := dbtest.New(t)
	require.NoError(t, gdb.Create(&models.UserAccount{ID: "u1", AccountStatus: types.AccountStatusFrozen}).Error)

	client := revenuecat.NewClient(&config.Config{BillingProvider: config.BillingProviderConfig{BaseURL: srv.URL, APIKey: "sk_test", Timeout: time.Second}})
	log := zap.NewNop().Sugar()
	return NewService(client, account.NewService(account.NewStore(gdb), log), log), gdb
}

func subscriberHandler(t *testing.T, expires time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/receipts", r.URL.Path)
		assert.Equal(t, "ios", r.Header.Get("X-Platform"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["app_user_id"])
		_ = json.NewEncoder(w).Encode(map[string]any{"subscriber": map[string]any{
			"original_app_user_id": "$RCAnonymousID:abc",
			"subscriptions": map[string]any{
				"pro_monthly": map[string]any{"store_transaction_id": "otx_42", "expires_date": expires.Format(time.RFC3339), "store": "app_store"},
			},
		}})
	}
}

var appStoreReq = &CreateSubscriptionRequest{FetchToken: "receipt", ProductID: "pro_monthly", Store: "app_store"}

func TestCreateSubscription(t *testing.T) {
	s, gdb := newTestService(t, subscriberHandler(t, time.Now().Add(30*24*time.Hour)))

	u, err := s.CreateSubscription(context.Background(), "u1", appStoreReq)
	require.NoError(t, err)
	require.Equal(t, types.AccountStatusActive, u.AccountStatus)
	require.Equal(t, "otx_42", lo.FromPtr(u.BillingSubscriptionID))
	require.Equal(t, "$RCAnonymousID:abc", lo.FromPtr(u.BillingCustomerID))

	var stored models.UserAccount
	require.NoError(t, gdb.Where("id = ?", "u1").Take(&stored).Error)
	require.NotNil(t, stored.LastPaymentDate)
}

func TestCreateSubscriptionExpired(t *testing.T) {
	s, _ := newTestService(t, subscriberHandler(t, time.Now().Add(-time.Hour)))
	_, err := s.CreateSubscription(context.Background(), "u1", appStoreReq)
	require.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestCreateSubscriptionProviderError(t *testing.T) {
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":7103,"message":"invalid receipt"}`))
	})
	_, err := s.CreateSubscription(context.Background(), "u1", appStoreReq)
	require.ErrorIs(t, err, ErrProvider)
	require.Contains(t, err.Error(), "invalid receipt")
}

func TestCreateSubscriptionUnknownUser(t *testing.T) {
	called := false
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := s.CreateSubscription(context.Background(), "ghost", appStoreReq)
	require.ErrorIs(t, err, account.ErrUserNotFound)
	require.False(t, called)
}
