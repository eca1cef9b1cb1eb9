package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/internal/platform/messaging"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/types"
)

func TestBuildStatusNotification(t *testing.T) {
	resume := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	user := func(s types.AccountStatus) *models.UserAccount {
		return &models.UserAccount{ID: "u1", AccountStatus: s, PhoneNumber: lo.ToPtr("+15550001")}
	}

	n := BuildStatusNotification(&StatusChange{User: user(types.AccountStatusPaused), From: types.AccountStatusActive, AutoResumeAt: &resume})
	require.NotNil(t, n)
	assert.Equal(t, "Subscription paused", n.Title)
	assert.Contains(t, n.Body, "Sep 1, 2025")
	assert.Equal(t, "+15550001", n.Phone)
	assert.Empty(t, n.PushToken)

	n = BuildStatusNotification(&StatusChange{User: user(types.AccountStatusCanceled), From: types.AccountStatusActive, ExpiresAt: &resume})
	require.NotNil(t, n)
	assert.Contains(t, n.Body, "until Sep 1, 2025")

	n = BuildStatusNotification(&StatusChange{User: user(types.AccountStatusActive), From: types.AccountStatusFrozen})
	require.NotNil(t, n)
	assert.Contains(t, n.Body, "unlocked")

	// unchanged or silent statuses
	assert.Nil(t, BuildStatusNotification(&StatusChange{User: user(types.AccountStatusActive), From: types.AccountStatusActive}))
	assert.Nil(t, BuildStatusNotification(&StatusChange{User: user(types.AccountStatusTrial), From: types.AccountStatusActive}))
	assert.Nil(t, BuildStatusNotification(&StatusChange{User: user(types.AccountStatusActiveFree), From: types.AccountStatusFrozen}))
	assert.Nil(t, BuildStatusNotification(nil))
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(context.Context, *Notification) error {
	s.calls++
	return s.err
}

func TestMultiNotifierJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	a, b, c := &stubNotifier{err: errA}, &stubNotifier{}, &stubNotifier{err: errors.New("c down")}

	err := MultiNotifier{a, b, c}.Notify(context.Background(), &Notification{UserID: "u1"})
	require.Error(t, err)
	require.ErrorIs(t, err, errA)
	require.Contains(t, err.Error(), "c down")
	require.Equal(t, 1, b.calls)

	require.NoError(t, MultiNotifier{b}.Notify(context.Background(), &Notification{}))
}

func TestChannelNotifiers(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sms := NewSMSNotifier(messaging.NewSMSClient(srv.URL, "k", time.Second))
	push := NewPushNotifier(messaging.NewPushClient(srv.URL, "k", time.Second))
	n := &Notification{UserID: "u1", To: types.AccountStatusFrozen, Title: "Account locked", Body: "b", Phone: "+1555", PushToken: "tok"}

	require.NoError(t, sms.Notify(context.Background(), n))
	require.NoError(t, push.Notify(context.Background(), n))
	require.Len(t, got, 2)
	assert.Equal(t, "tok", got[1]["token"])

	// no address, no request
	require.NoError(t, sms.Notify(context.Background(), &Notification{UserID: "u2"}))
	require.NoError(t, push.Notify(context.Background(), &Notification{UserID: "u2"}))
	require.Len(t, got, 2)
}

func TestChannelNotifierGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sms := NewSMSNotifier(messaging.NewSMSClient(srv.URL, "", time.Second))
	err := sms.Notify(context.Background(), &Notification{UserID: "u1", Phone: "+1555"})
	require.Error(t, err)
}

func TestNewFallsBackToLog(t *testing.T) {
	n := New(&config.Config{}, zap.NewNop().Sugar())
	require.IsType(t, &LogNotifier{}, n)
	require.NoError(t, n.Notify(context.Background(), &Notification{UserID: "u1"}))

	n = New(&config.Config{Notification: config.NotificationConfig{SMSGatewayURL: "http://sms.local", Timeout: time.Second}}, zap.NewNop().Sugar())
	require.IsType(t, MultiNotifier{}, n)
	require.Len(t, n.(MultiNotifier), 1)
}
