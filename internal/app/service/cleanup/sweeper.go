// Package cleanup periodically deletes expired idempotency keys and rate
// limit buckets, off the request path.
package cleanup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/metrics"
)

type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Result struct {
	IdempotencyKeys  int64
	RateLimitBuckets int64
}

type Sweeper struct {
	idempotency expirer
	ratelimit   expirer
	interval    time.Duration
	log         *zap.SugaredLogger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newSweeper(cfg *config.Config, idem, rl expirer, log *zap.SugaredLogger) *Sweeper {
	interval := cfg.Cleanup.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		idempotency: idem,
		ratelimit:   rl,
		interval:    interval,
		log:         log,
		stopCh:      make(chan struct{}),
	}
}

// Sweep runs one pass. A failing table does not stop the other.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	start := time.Now()
	defer metrics.ObserveSince("cleanup", "sweep", start)

	var res Result
	var firstErr error
	n, err := s.idempotency.DeleteExpired(ctx)
	if err != nil {
		s.log.Errorw("cleanup_idempotency_failed", "err", err)
		firstErr = err
	}
	res.IdempotencyKeys = n

	n, err = s.ratelimit.DeleteExpired(ctx)
	if err != nil {
		s.log.Errorw("cleanup_ratelimit_failed", "err", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	res.RateLimitBuckets = n

	if res.IdempotencyKeys > 0 || res.RateLimitBuckets > 0 {
		s.log.Infow("cleanup_swept", "idempotency_keys", res.IdempotencyKeys, "ratelimit_buckets", res.RateLimitBuckets)
	}
	return &res, firstErr
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop ends the loop and waits for an in-flight sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	close(s.stopCh)
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}

func registerSweeper(lc fx.Lifecycle, s *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.log.Infow("cleanup_started", "interval", s.interval.String())
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
}
