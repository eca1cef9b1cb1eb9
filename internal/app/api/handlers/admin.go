package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/fatflowers/billingsync/internal/app/service/account"
	"github.com/fatflowers/billingsync/internal/app/service/statistics"
	"github.com/fatflowers/billingsync/internal/app/service/webhook"
	"github.com/fatflowers/billingsync/internal/app/service/webhooklog"
	"github.com/fatflowers/billingsync/pkg/response"
)

type ReplayWebhookEventRequest struct {
	EventID string `json:"event_id" binding:"required"`
}

// @Summary      Scan webhook events (Admin)
// @Description  Filtered, paginated scan of the webhook audit log.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Param        request body webhooklog.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespWebhookEvents
// @Failure      400  {object}  handlers.RespOK
// @Router       /api/v1/admin/webhook_events [post]
func ApiScanWebhookEvents(svc *webhooklog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req webhooklog.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.Scan(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Replay webhook event (Admin)
// @Description  Re-dispatches a stored event that has not been processed successfully.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Param        request body handlers.ReplayWebhookEventRequest true "Event to replay"
// @Success      200  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Failure      409  {object}  handlers.RespOK
// @Router       /api/v1/admin/webhook_events/replay [post]
func ApiReplayWebhookEvent(d *webhook.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReplayWebhookEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := d.Replay(c.Request.Context(), req.EventID)
		switch {
		case errors.Is(err, webhook.ErrEventNotFound):
			c.JSON(http.StatusNotFound, response.ErrorMsg(response.APIResponseCodeNotFound, err.Error()))
			return
		case errors.Is(err, webhook.ErrAlreadyProcessed), errors.Is(err, webhook.ErrInProgress):
			c.JSON(http.StatusConflict, response.ErrorMsg(response.APIResponseCodeConflict, err.Error()))
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, response.ErrorMsg(response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Account statistics (Admin)
// @Description  Counts per account status and webhook outcomes. items selects statistics (comma separated).
// @Tags         Admin
// @Produce      json
// @Security     BasicAuth
// @Param        items query string false "e.g. account_status_count,daily_transition_count"
// @Success      200  {object}  handlers.RespStatistic
// @Failure      400  {object}  handlers.RespOK
// @Router       /api/v1/admin/account_statistics [get]
func ApiGetAccountStatistics(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &statistics.StatisticRequest{}
		if items := strings.TrimSpace(c.Query("items")); items != "" {
			req.DataItems = lo.Map(strings.Split(items, ","), func(s string, _ int) *statistics.StatisticDataItem {
				return &statistics.StatisticDataItem{ID: statistics.StatisticType(strings.TrimSpace(s))}
			})
		}
		res, err := svc.GetStatistic(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Statistics query (Admin)
// @Description  Computes the requested statistics with filters.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Param        request body statistics.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistic
// @Failure      400  {object}  handlers.RespOK
// @Router       /api/v1/admin/account_statistics [post]
func ApiQueryAccountStatistics(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.StatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Account status history (Admin)
// @Description  Persisted status transitions of one account, newest first.
// @Tags         Admin
// @Produce      json
// @Security     BasicAuth
// @Param        user_id path string true "Account id"
// @Param        limit query int false "Maximum rows (default 50, at most 500)"
// @Success      200  {object}  handlers.RespAccountHistory
// @Failure      400  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/admin/accounts/{user_id}/history [get]
func ApiGetAccountHistory(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, "limit must be a non-negative integer"))
				return
			}
			limit = n
		}
		logs, err := accounts.History(c.Request.Context(), c.Param("user_id"), limit)
		switch {
		case errors.Is(err, account.ErrUserNotFound):
			c.JSON(http.StatusNotFound, response.ErrorMsg(response.APIResponseCodeNotFound, err.Error()))
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, response.ErrorMsg(response.APIResponseCodeError, ""))
			return
		}
		c.JSON(http.StatusOK, response.OKT(logs))
	}
}

// RegisterAdminRoutes mounts the admin API. Without configured admin
// credentials every admin request is rejected.
func RegisterAdminRoutes(r gin.IRouter, admins map[string]string, accounts *account.Service, events *webhooklog.Service, d *webhook.Dispatcher, stats *statistics.Service) {
	g := r.Group("", adminAuth(admins))
	g.GET("/accounts/:user_id/history", ApiGetAccountHistory(accounts))
	g.POST("/webhook_events", ApiScanWebhookEvents(events))
	g.POST("/webhook_events/replay", ApiReplayWebhookEvent(d))
	g.GET("/account_statistics", ApiGetAccountStatistics(stats))
	g.POST("/account_statistics", ApiQueryAccountStatistics(stats))
}

func adminAuth(admins map[string]string) gin.HandlerFunc {
	if len(admins) == 0 {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorMsg(response.APIResponseCodeUnauthorized, "admin api disabled"))
		}
	}
	return gin.BasicAuth(gin.Accounts(admins))
}
