package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/billingsync/internal/app/service/ratelimit"
	"github.com/fatflowers/billingsync/pkg/response"
)

// RateLimitMiddleware counts every request against its category bucket and
// answers 429 once the window is full.
func RateLimitMiddleware(svc *ratelimit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := svc.Classify(c.Request.Method, c.Request.URL.Path)
		id := ratelimit.Identifier(UserID(c), c.ClientIP())
		d := svc.CheckRateLimit(c.Request.Context(), id, category)

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if d.Allowed {
			c.Next()
			return
		}
		h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, response.ErrorMsg(response.APIResponseCodeTooManyRequests, "rate limit exceeded for "+string(category)))
	}
}

// retryAfterSeconds rounds up and never advertises less than one second.
func retryAfterSeconds(d ratelimit.Decision) int {
	return max(int(math.Ceil(d.RetryAfter.Seconds())), 1)
}
