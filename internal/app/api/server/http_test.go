package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/platform/db/dbtest"
	cfgpkg "github.com/fatflowers/billingsync/pkg/config"
)

func TestRoutesAreRegistered(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r, err := newEngine(RouteParams{
		Log: zap.NewNop().Sugar(),
		Cfg: &cfgpkg.Config{Idempotency: cfgpkg.IdempotencyConfig{Header: "Idempotency-Key"}},
		DB:  dbtest.New(t),
	})
	require.NoError(t, err)

	routes := map[string]bool{}
	for _, rt := range r.Routes() {
		routes[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /readyz",
		"GET /swagger/*any",
		"POST /api/v2/webhooks/billing",
		"GET /api/v1/account",
		"POST /api/v1/subscriptions",
		"POST /api/v1/admin/webhook_events",
		"POST /api/v1/admin/webhook_events/replay",
		"GET /api/v1/admin/account_statistics",
		"POST /api/v1/admin/account_statistics",
		"GET /api/v1/admin/accounts/:user_id/history",
	} {
		require.True(t, routes[want], want)
	}
}

func TestCORS(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	plain := withCORS(&cfgpkg.Config{}, h)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	plain.ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	wrapped := withCORS(&cfgpkg.Config{CORS: cfgpkg.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}}, h)
	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
