// Package webhook turns verified billing provider deliveries into account
// transitions and keeps the audit log of every delivery.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/billingsync/internal/app/service/account"
	"github.com/fatflowers/billingsync/internal/app/service/notifier"
	"github.com/fatflowers/billingsync/internal/app/service/webhooklog"
	"github.com/fatflowers/billingsync/internal/platform/revenuecat"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/metrics"
)

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrInProgress means another delivery of the same event holds the
	// processing lease. The provider sees a 500 and retries.
	ErrInProgress       = errors.New("webhook event is being processed")
	ErrEventNotFound    = errors.New("webhook event not found")
	ErrAlreadyProcessed = errors.New("webhook event already processed")
)

type Result struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// accountApplier is the part of the account service the dispatcher drives.
type accountApplier interface {
	ApplyEvent(ctx context.Context, ev *account.Event) ([]*account.Transition, error)
}

type Dispatcher struct {
	log         *zap.SugaredLogger
	events      *webhooklog.Service
	accounts    accountApplier
	notifier    notifier.Notifier
	validate    *validator.Validate
	dedupWindow int
	timeout     time.Duration
}

func NewDispatcher(cfg *config.Config, events *webhooklog.Service, accounts *account.Service, n notifier.Notifier, log *zap.SugaredLogger) *Dispatcher {
	return newDispatcher(cfg, events, accounts, n, log)
}

func newDispatcher(cfg *config.Config, events *webhooklog.Service, accounts accountApplier, n notifier.Notifier, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		log:         log,
		events:      events,
		accounts:    accounts,
		notifier:    n,
		validate:    validator.New(),
		dedupWindow: cfg.Webhook.DedupWindowHours,
		timeout:     cfg.Webhook.Timeout,
	}
}

// Process handles one delivery whose signature was already verified.
func (d *Dispatcher) Process(ctx context.Context, raw []byte) (*Result, error) {
	start := time.Now()
	req, err := revenuecat.ParseWebhook(raw, d.validate)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("", "malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ev := toAccountEvent(req)
	lg := logctx.FromCtx(ctx, d.log).With("event_id", ev.ID, "event_type", ev.RawType)
	if err := validateEvent(ev); err != nil {
		metrics.WebhookEvents.WithLabelValues(string(ev.Type), "malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	res := &Result{EventID: ev.ID, EventType: ev.RawType}
	lg.Infow("webhook_received", "user_id", logUserID(ev))
	defer metrics.ObserveSince("webhook", string(ev.Type), start)

	dup, err := d.events.IsDuplicate(ctx, ev.ID, ev.RawType, d.dedupWindow)
	if err != nil {
		lg.Warnw("webhook_dedup_check_failed", "err", err)
	}
	if dup {
		lg.Infow("webhook_duplicate")
		metrics.WebhookEvents.WithLabelValues(string(ev.Type), "duplicate").Inc()
		res.Duplicate = true
		return res, nil
	}

	claimed, err := d.events.LogEventPending(ctx, &webhooklog.PendingEvent{
		EventID:   ev.ID,
		EventType: ev.RawType,
		UserID:    logUserID(ev),
		Payload:   raw,
	})
	switch {
	case err != nil:
		// the audit row is lost for this delivery; processing goes on
		lg.Errorw("webhook_pending_log_failed", "err", err)
	case !claimed:
		if done, _ := d.events.IsDuplicate(ctx, ev.ID, "", 0); done {
			metrics.WebhookEvents.WithLabelValues(string(ev.Type), "duplicate").Inc()
			res.Duplicate = true
			return res, nil
		}
		metrics.WebhookEvents.WithLabelValues(string(ev.Type), "in_progress").Inc()
		return nil, ErrInProgress
	}

	if err := d.apply(ctx, ev); err != nil {
		lg.Errorw("webhook_processing_failed", "err", err)
		metrics.WebhookEvents.WithLabelValues(string(ev.Type), "failed").Inc()
		if markErr := d.events.MarkEventOutcome(ctx, ev.ID, false, err.Error()); markErr != nil {
			lg.Errorw("webhook_outcome_log_failed", "err", markErr)
		}
		return nil, fmt.Errorf("process event %s: %w", ev.ID, err)
	}

	if err := d.events.MarkEventOutcome(ctx, ev.ID, true, ""); err != nil {
		lg.Errorw("webhook_outcome_log_failed", "err", err)
	}
	metrics.WebhookEvents.WithLabelValues(string(ev.Type), "processed").Inc()
	lg.Infow("webhook_processed")
	return res, nil
}

// Replay re-dispatches a stored delivery that has not succeeded yet.
func (d *Dispatcher) Replay(ctx context.Context, eventID string) (*Result, error) {
	row, err := d.events.Get(ctx, eventID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if err != nil {
		return nil, err
	}
	if row.Success {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, eventID)
	}
	logctx.FromCtx(ctx, d.log).Infow("webhook_replay", "event_id", eventID, "attempts", row.Attempts)
	return d.Process(ctx, row.Payload)
}

// apply runs the transition under the processing timeout, then fires side
// effects for committed status changes.
func (d *Dispatcher) apply(ctx context.Context, ev *account.Event) error {
	applyCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		applyCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	transitions, err := d.accounts.ApplyEvent(applyCtx, ev)
	if err != nil {
		return err
	}
	for _, t := range transitions {
		d.notify(ctx, ev, t)
	}
	return nil
}

func (d *Dispatcher) notify(ctx context.Context, ev *account.Event, t *account.Transition) {
	n := notifier.BuildStatusNotification(&notifier.StatusChange{
		User:         t.After,
		From:         t.From,
		ExpiresAt:    ev.ExpirationAt,
		AutoResumeAt: ev.AutoResumeAt,
	})
	if n == nil {
		return
	}
	if err := d.notifier.Notify(ctx, n); err != nil {
		logctx.FromCtx(ctx, d.log).Warnw("webhook_notify_failed", "user_id", t.UserID, "to", t.To, "err", err)
	}
}
