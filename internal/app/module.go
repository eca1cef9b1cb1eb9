package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/billingsync/internal/app/api/server"
	"github.com/fatflowers/billingsync/internal/app/service/account"
	"github.com/fatflowers/billingsync/internal/app/service/billing"
	"github.com/fatflowers/billingsync/internal/app/service/cleanup"
	"github.com/fatflowers/billingsync/internal/app/service/idempotency"
	"github.com/fatflowers/billingsync/internal/app/service/notifier"
	"github.com/fatflowers/billingsync/internal/app/service/ratelimit"
	"github.com/fatflowers/billingsync/internal/app/service/statistics"
	"github.com/fatflowers/billingsync/internal/app/service/webhook"
	"github.com/fatflowers/billingsync/internal/app/service/webhooklog"
	"github.com/fatflowers/billingsync/internal/platform/cache"
	"github.com/fatflowers/billingsync/internal/platform/db"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	cache.Module,
	ratelimit.Module,
	idempotency.Module,
	webhooklog.Module,
	account.Module,
	notifier.Module,
	webhook.Module,
	billing.Module,
	statistics.Module,
	cleanup.Module,
	server.Module,
)
