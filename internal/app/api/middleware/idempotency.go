package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/app/service/idempotency"
	"github.com/fatflowers/billingsync/internal/app/service/ratelimit"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/response"
)

// captureWriter keeps a copy of the response body for caching.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the cached response of a repeated keyed
// request and caches successful responses of new ones. Keys are scoped to
// the caller: the user when authenticated, else the client address.
func IdempotencyMiddleware(svc *idempotency.Service, header string, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(header)
		if key == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		scope := ratelimit.Identifier(UserID(c), c.ClientIP())
		res, err := svc.CheckKey(c.Request.Context(), scope, key, body)
		if err != nil {
			// CheckKey fails only on a malformed key; store errors proceed
			c.AbortWithStatusJSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		switch {
		case res.Conflict:
			c.AbortWithStatusJSON(http.StatusConflict, response.ErrorMsg(response.APIResponseCodeConflict, "idempotency key reused with a different request body"))
			return
		case res.InProgress:
			c.AbortWithStatusJSON(http.StatusConflict, response.ErrorMsg(response.APIResponseCodeConflict, "a request with this idempotency key is still in progress"))
			return
		case res.Cached != nil:
			c.Header(idempotency.ReplayHeader, "true")
			c.Data(res.Cached.StatusCode, "application/json; charset=utf-8", res.Cached.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if err := svc.StoreKey(c.Request.Context(), scope, key, body, w.Status(), w.buf.Bytes()); err != nil {
			logctx.FromGin(c, base).Warnw("idempotency_store_failed", "idempotency_key", key, "err", err)
		}
	}
}
