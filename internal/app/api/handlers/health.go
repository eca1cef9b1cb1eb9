package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fatflowers/billingsync/internal/platform/db"
	"github.com/fatflowers/billingsync/pkg/response"
)

// @Summary      Health check
// @Description  Returns service status without touching dependencies
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
}

// @Summary      Readiness check
// @Description  Pings the database
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  handlers.RespOK
// @Router       /readyz [get]
func Readyz(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, gdb); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.ErrorMsg(response.APIResponseCodeError, "database unavailable"))
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ready"}))
	}
}

func RegisterHealthRoutes(r gin.IRouter, gdb *gorm.DB) {
	r.GET("/healthz", Healthz)
	r.GET("/readyz", Readyz(gdb))
}
