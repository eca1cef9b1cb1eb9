package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/pkg/logctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger enriched with
// trace_id and user_id (if present) to gin.Context and request context.
func RequestLoggerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields := []any{"trace_id", c.GetString(logctx.TraceIDKey)}
		if uid := c.GetString(logctx.UserIDKey); uid != "" {
			fields = append(fields, "user_id", uid)
		}
		reqLogger := base.With(fields...)

		c.Set(logctx.LoggerKey, reqLogger)
		c.Request = c.Request.WithContext(logctx.WithLogger(c.Request.Context(), reqLogger))
		c.Next()
	}
}
