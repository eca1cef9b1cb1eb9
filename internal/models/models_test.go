package models

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	require.Equal(t, "user_account", UserAccount{}.TableName())
	require.Equal(t, "account_status_log", AccountStatusLog{}.TableName())
	require.Equal(t, "webhook_event_log", WebhookEventLog{}.TableName())
	require.Equal(t, "idempotency_key", IdempotencyKey{}.TableName())
	require.Equal(t, "rate_limit_bucket", RateLimitBucket{}.TableName())
	require.Len(t, All(), 5)
}

func TestUserAccountExemptAndTrial(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var nilAcc *UserAccount
	require.False(t, nilAcc.Exempt())
	require.False(t, nilAcc.InTrial(now))

	require.True(t, (&UserAccount{IsMember: true}).Exempt())
	require.True(t, (&UserAccount{GrandfatheredFree: true}).Exempt())
	require.False(t, (&UserAccount{}).Exempt())

	require.True(t, (&UserAccount{TrialEndDate: lo.ToPtr(now.Add(time.Second))}).InTrial(now))
	require.False(t, (&UserAccount{TrialEndDate: lo.ToPtr(now)}).InTrial(now))
	require.False(t, (&UserAccount{}).InTrial(now))
}

func TestUserAccountClone(t *testing.T) {
	orig := &UserAccount{ID: "u1", BillingCustomerID: lo.ToPtr("cus_1")}
	c := orig.Clone()
	c.BillingCustomerID = nil
	c.ID = "u2"
	require.Equal(t, "u1", orig.ID)
	require.Equal(t, "cus_1", *orig.BillingCustomerID)
}
