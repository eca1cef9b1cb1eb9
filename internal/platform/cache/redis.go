package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/billingsync/pkg/config"
)

// NewRedis builds the client lazily; no connection is made until first use.
func NewRedis(cfg *cfgpkg.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// registerRedis pings on start when redis backs the rate limiter. A failed
// ping is only logged: the limiter fails open.
func registerRedis(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config, client *redis.Client) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.RateLimit.Backend != "redis" {
				return nil
			}
			if err := client.Ping(ctx).Err(); err != nil {
				l.Warnw("redis_ping_failed", "addr", cfg.Redis.Addr, "err", err)
				return nil
			}
			l.Infow("connected to redis", "addr", cfg.Redis.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewRedis),
	fx.Invoke(registerRedis),
)
