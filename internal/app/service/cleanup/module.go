package cleanup

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/app/service/idempotency"
	"github.com/fatflowers/billingsync/internal/app/service/ratelimit"
	"github.com/fatflowers/billingsync/pkg/config"
)

func NewSweeper(cfg *config.Config, idem *idempotency.Service, rl *ratelimit.Service, log *zap.SugaredLogger) *Sweeper {
	return newSweeper(cfg, idem, rl, log)
}

// Module exposes the sweeper via Fx and runs it for the app's lifetime.
var Module = fx.Options(
	fx.Provide(NewSweeper),
	fx.Invoke(registerSweeper),
)
