package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSClientSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sms_key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewSMSClient(srv.URL, "sms_key", time.Second)
	require.True(t, c.Configured())
	require.NoError(t, c.Send(context.Background(), "+15550100", "hello"))
	require.Equal(t, map[string]string{"to": "+15550100", "body": "hello"}, got)
}

func TestPushClientGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token unregistered", http.StatusGone)
	}))
	defer srv.Close()

	err := NewPushClient(srv.URL, "", time.Second).Send(context.Background(), &PushMessage{Token: "t", Title: "x", Body: "y"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "410")
	require.Contains(t, err.Error(), "token unregistered")
}

func TestUnconfiguredGateway(t *testing.T) {
	c := NewPushClient("", "", 0)
	require.False(t, c.Configured())
	require.ErrorIs(t, c.Send(context.Background(), &PushMessage{}), ErrNotConfigured)
}
