package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/billingsync/internal/app/api/middleware"
	"github.com/fatflowers/billingsync/internal/app/service/account"
	"github.com/fatflowers/billingsync/internal/app/service/billing"
	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/response"
	"github.com/fatflowers/billingsync/pkg/types"
)

// AccountView is what a user sees of their own billing record.
type AccountView struct {
	UserID            string              `json:"user_id"`
	AccountStatus     types.AccountStatus `json:"account_status"`
	IsMember          bool                `json:"is_member"`
	GrandfatheredFree bool                `json:"grandfathered_free"`
	TrialEndDate      *time.Time          `json:"trial_end_date"`
	LastPaymentDate   *time.Time          `json:"last_payment_date"`
	HasSubscription   bool                `json:"has_subscription"`
}

func toAccountView(u *models.UserAccount) *AccountView {
	return &AccountView{
		UserID:            u.ID,
		AccountStatus:     u.AccountStatus,
		IsMember:          u.IsMember,
		GrandfatheredFree: u.GrandfatheredFree,
		TrialEndDate:      u.TrialEndDate,
		LastPaymentDate:   u.LastPaymentDate,
		HasSubscription:   u.BillingSubscriptionID != nil,
	}
}

// @Summary      Get my account
// @Description  Returns the caller's billing status.
// @Tags         Account
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespAccount
// @Failure      401  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/account [get]
func ApiGetAccount(svc *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.GetAccount(c.Request.Context(), mw.UserID(c))
		if errors.Is(err, account.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorMsg(response.APIResponseCodeNotFound, "account not found"))
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(toAccountView(u)))
	}
}

// @Summary      Create subscription
// @Description  Confirms a store purchase with the billing provider and activates the caller's account. Send an Idempotency-Key (UUID) header to make retries safe.
// @Tags         Account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "UUID idempotency key"
// @Param        request body billing.CreateSubscriptionRequest true "Store purchase"
// @Success      201  {object}  handlers.RespAccount
// @Failure      400  {object}  handlers.RespOK
// @Failure      401  {object}  handlers.RespOK
// @Failure      402  {object}  handlers.RespOK
// @Failure      409  {object}  handlers.RespOK
// @Failure      429  {object}  handlers.RespOK
// @Failure      502  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions [post]
func ApiCreateSubscription(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.CreateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		u, err := svc.CreateSubscription(c.Request.Context(), mw.UserID(c), &req)
		switch {
		case errors.Is(err, account.ErrUserNotFound):
			c.JSON(http.StatusNotFound, response.ErrorMsg(response.APIResponseCodeNotFound, "account not found"))
			return
		case errors.Is(err, billing.ErrNoActiveSubscription):
			c.JSON(http.StatusPaymentRequired, response.ErrorMsg(response.APIResponseCodePaymentRequired, err.Error()))
			return
		case errors.Is(err, billing.ErrProvider):
			c.JSON(http.StatusBadGateway, response.ErrorT[any](response.APIResponseCodeBadGateway, nil))
			return
		case err != nil:
			logctx.FromGin(c, log).Errorw("create_subscription_failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusCreated, response.OKT(toAccountView(u)))
	}
}

// RegisterAccountRoutes mounts the user-facing routes; r must already
// require an authenticated user.
func RegisterAccountRoutes(r gin.IRouter, accounts *account.Service, subs *billing.Service, idem gin.HandlerFunc, log *zap.SugaredLogger) {
	r.GET("/account", ApiGetAccount(accounts))
	r.POST("/subscriptions", idem, ApiCreateSubscription(subs, log))
}
