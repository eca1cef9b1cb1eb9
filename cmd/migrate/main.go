// Command migrate manages the embedded SQL schema and runs one-off
// maintenance passes outside the API process.
//
//	migrate up          apply pending migrations
//	migrate down [n]    roll back n migrations (default 1)
//	migrate version     print the applied version
//	migrate sweep       delete expired idempotency keys and rate limit buckets
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/app/service/cleanup"
	"github.com/fatflowers/billingsync/internal/app/service/idempotency"
	"github.com/fatflowers/billingsync/internal/app/service/ratelimit"
	"github.com/fatflowers/billingsync/internal/platform/cache"
	"github.com/fatflowers/billingsync/internal/platform/db"
	"github.com/fatflowers/billingsync/internal/platform/db/migrations"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		zap.NewExample().Sugar().Errorf("migrate %s: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	l, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	gdb, err := db.NewDB(l, cfg)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	switch command {
	case "up":
		return migrations.Up(sqlDB, l)
	case "down":
		steps := 1
		if len(args) > 0 {
			if steps, err = strconv.Atoi(args[0]); err != nil {
				return fmt.Errorf("invalid step count %q: %w", args[0], err)
			}
		}
		return migrations.Down(sqlDB, l, steps)
	case "version":
		v, dirty, err := migrations.Version(sqlDB)
		if err != nil {
			return err
		}
		l.Infow("migrations_version", "version", v, "dirty", dirty)
		return nil
	case "sweep":
		rdb := cache.NewRedis(cfg)
		defer rdb.Close()
		idem := idempotency.NewService(cfg, gdb, l)
		rl := ratelimit.NewService(cfg, ratelimit.NewStore(cfg, gdb, rdb), l)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, err := cleanup.NewSweeper(cfg, idem, rl, l).Sweep(ctx)
		return err
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Println("usage: migrate <command>")
	fmt.Println("  up          apply pending migrations")
	fmt.Println("  down [n]    roll back n migrations (default 1)")
	fmt.Println("  version     print the applied schema version")
	fmt.Println("  sweep       delete expired idempotency keys and rate limit buckets")
}
