package billing

import (
	"go.uber.org/fx"

	"github.com/fatflowers/billingsync/internal/platform/revenuecat"
)

var Module = fx.Options(
	fx.Provide(revenuecat.NewClient),
	fx.Provide(NewService),
)
