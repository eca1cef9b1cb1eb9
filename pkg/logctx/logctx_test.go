package logctx

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromCtxEnrichesTraceAndUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	ctx := WithUserID(WithTraceID(context.Background(), "trace-1"), "u1")
	FromCtx(ctx, base).Infow("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	require.Equal(t, "trace-1", fields["trace_id"])
	require.Equal(t, "u1", fields["user_id"])
}

func TestFromCtxPrefersAttachedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	attached := zap.New(core).Sugar().With("attached", true)

	ctx := WithLogger(context.Background(), attached)
	FromCtx(ctx, zap.NewNop().Sugar()).Infow("hello")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, true, logs.All()[0].ContextMap()["attached"])
}

func TestFromGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	base := zap.NewNop().Sugar()

	require.Equal(t, base, FromGin(nil, base))

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	require.Equal(t, base, FromGin(c, base))

	scoped := base.With("k", "v")
	c.Set(LoggerKey, scoped)
	require.Equal(t, scoped, FromGin(c, base))
}
