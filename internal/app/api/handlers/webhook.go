package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/app/service/webhook"
	"github.com/fatflowers/billingsync/internal/platform/revenuecat"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/logctx"
)

const maxWebhookBody = 1 << 20

// WebhookResponse is the acknowledgement sent to the billing provider.
type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type WebhookError struct {
	Error string `json:"error"`
}

// @Summary      Billing provider webhook
// @Description  Receives subscription lifecycle events. The body is signed with HMAC-SHA256 (hex) in the configured signature header. Non-2xx responses make the provider retry.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body revenuecat.WebhookRequest true "Provider event"
// @Success      200  {object}  handlers.WebhookResponse
// @Failure      400  {object}  handlers.WebhookError
// @Failure      401  {object}  handlers.WebhookError
// @Failure      500  {object}  handlers.WebhookError
// @Router       /api/v2/webhooks/billing [post]
func ApiBillingWebhook(d *webhook.Dispatcher, cfg *config.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil || len(raw) > maxWebhookBody {
			c.JSON(http.StatusBadRequest, WebhookError{Error: "unreadable or oversized body"})
			return
		}
		if !revenuecat.VerifySignature(raw, c.GetHeader(cfg.Webhook.SignatureHeader), cfg.Webhook.Secret) {
			lg.Warnw("webhook_signature_invalid")
			c.JSON(http.StatusUnauthorized, WebhookError{Error: "invalid signature"})
			return
		}

		res, err := d.Process(c.Request.Context(), raw)
		switch {
		case errors.Is(err, webhook.ErrMalformedPayload):
			lg.Warnw("webhook_malformed", "err", err)
			c.JSON(http.StatusBadRequest, WebhookError{Error: err.Error()})
			return
		case errors.Is(err, webhook.ErrInProgress):
			// another delivery holds the lease; a 5xx makes the provider retry
			lg.Infow("webhook_in_progress")
			c.JSON(http.StatusInternalServerError, WebhookError{Error: err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, WebhookError{Error: "processing failed"})
			return
		}
		c.JSON(http.StatusOK, WebhookResponse{
			Received:  true,
			EventID:   res.EventID,
			EventType: res.EventType,
			Duplicate: res.Duplicate,
		})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, d *webhook.Dispatcher, cfg *config.Config, log *zap.SugaredLogger) {
	r.POST("/billing", ApiBillingWebhook(d, cfg, log))
}
