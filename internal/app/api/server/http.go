package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/billingsync/docs"
	"github.com/fatflowers/billingsync/internal/app/api/handlers"
	mw "github.com/fatflowers/billingsync/internal/app/api/middleware"
	"github.com/fatflowers/billingsync/internal/app/service/account"
	"github.com/fatflowers/billingsync/internal/app/service/billing"
	"github.com/fatflowers/billingsync/internal/app/service/idempotency"
	"github.com/fatflowers/billingsync/internal/app/service/ratelimit"
	"github.com/fatflowers/billingsync/internal/app/service/statistics"
	"github.com/fatflowers/billingsync/internal/app/service/webhook"
	"github.com/fatflowers/billingsync/internal/app/service/webhooklog"
	cfgpkg "github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/metrics"
)

// RouteParams collects everything the routes depend on.
type RouteParams struct {
	fx.In

	Log         *zap.SugaredLogger
	Cfg         *cfgpkg.Config
	DB          *gorm.DB
	RateLimit   *ratelimit.Service
	Idempotency *idempotency.Service
	Accounts    *account.Service
	Billing     *billing.Service
	Events      *webhooklog.Service
	Dispatcher  *webhook.Dispatcher
	Stats       *statistics.Service
}

func newEngine(p RouteParams) (*gin.Engine, error) {
	if p.Cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := r.SetTrustedProxies(p.Cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(mw.TraceMiddleware())
	r.Use(mw.AuthMiddleware(p.Cfg.Auth.JWTSecret))
	r.Use(mw.RequestLoggerMiddleware(p.Log), mw.AccessLogMiddleware(p.Log))
	if p.Cfg.MetricsAddr != "" {
		r.Use(metrics.NewHTTPMetrics(nil, "/healthz", "/readyz").HandlerFunc())
	}
	if p.Cfg.RateLimit.Enabled {
		r.Use(mw.RateLimitMiddleware(p.RateLimit))
	}
	registerRoutes(r, p)
	return r, nil
}

func registerRoutes(r *gin.Engine, p RouteParams) {
	handlers.RegisterHealthRoutes(r, p.DB)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Billing provider webhooks: authenticated by signature, not by token
	handlers.RegisterWebhookRoutes(r.Group("/api/v2/webhooks"), p.Dispatcher, p.Cfg, p.Log)

	// User APIs
	idem := mw.IdempotencyMiddleware(p.Idempotency, p.Cfg.Idempotency.Header, p.Log)
	handlers.RegisterAccountRoutes(r.Group("/api/v1", mw.RequireUser()), p.Accounts, p.Billing, idem, p.Log)

	// Admin APIs
	handlers.RegisterAdminRoutes(r.Group("/api/v1/admin"), p.Cfg.Admin.Accounts, p.Accounts, p.Events, p.Dispatcher, p.Stats)
}

// withCORS wraps h when cross-origin callers are configured.
func withCORS(cfg *cfgpkg.Config, h http.Handler) http.Handler {
	if len(cfg.CORS.AllowedOrigins) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", cfg.Idempotency.Header, mw.RequestIDHeader},
		ExposedHeaders: []string{
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After",
			idempotency.ReplayHeader, mw.RequestIDHeader,
		},
		AllowCredentials: true,
	}).Handler(h)
}

func serve(lc fx.Lifecycle, log *zap.SugaredLogger, name string, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting "+name+" server", "addr", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("%s server error: %v", name, err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping " + name + " server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serve(lc, log, "HTTP", &http.Server{Addr: addr, Handler: withCORS(cfg, r), ReadHeaderTimeout: 5 * time.Second})

	// Prometheus metrics on their own listener
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		serve(lc, log, "metrics", &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(runServer),
)
