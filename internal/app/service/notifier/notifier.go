// Package notifier delivers user-facing messages about account status
// changes. Delivery is best effort: callers log failures and move on.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/internal/platform/messaging"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/metrics"
	"github.com/fatflowers/billingsync/pkg/types"
)

const dateLayout = "Jan 2, 2006"

type Notification struct {
	UserID    string
	From      types.AccountStatus
	To        types.AccountStatus
	Title     string
	Body      string
	Phone     string
	PushToken string
}

type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// StatusChange carries what the message builder needs to know about a
// transition.
type StatusChange struct {
	User         *models.UserAccount
	From         types.AccountStatus
	ExpiresAt    *time.Time
	AutoResumeAt *time.Time
}

// BuildStatusNotification renders the message for the status the user now
// holds. Statuses users are not told about return nil.
func BuildStatusNotification(c *StatusChange) *Notification {
	if c == nil || c.User == nil || c.From == c.User.AccountStatus {
		return nil
	}
	n := &Notification{
		UserID:    c.User.ID,
		From:      c.From,
		To:        c.User.AccountStatus,
		Phone:     lo.FromPtr(c.User.PhoneNumber),
		PushToken: lo.FromPtr(c.User.PushToken),
	}
	switch c.User.AccountStatus {
	case types.AccountStatusActive:
		n.Title = "Subscription active"
		n.Body = "Your subscription is active. Thanks for being with us."
		if c.From == types.AccountStatusPastDue || c.From == types.AccountStatusFrozen {
			n.Body = "Your payment went through and your account is unlocked again."
		}
	case types.AccountStatusPastDue:
		n.Title = "Payment problem"
		n.Body = "We could not charge your payment method. Please update it to keep your access."
	case types.AccountStatusPaused:
		n.Title = "Subscription paused"
		n.Body = "Your subscription is paused."
		if c.AutoResumeAt != nil {
			n.Body = fmt.Sprintf("Your subscription is paused and resumes on %s.", c.AutoResumeAt.UTC().Format(dateLayout))
		}
	case types.AccountStatusCanceled:
		n.Title = "Subscription canceled"
		n.Body = "Your subscription was canceled."
		if c.ExpiresAt != nil {
			n.Body = fmt.Sprintf("Your subscription was canceled. You keep access until %s.", c.ExpiresAt.UTC().Format(dateLayout))
		}
	case types.AccountStatusFrozen:
		n.Title = "Account locked"
		n.Body = "Your subscription has ended and your account is locked. Renew to regain access."
	default:
		return nil
	}
	return n
}

// MultiNotifier sends through every channel and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n *Notification) error {
	var errs []error
	for _, c := range m {
		if err := c.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier only logs. It stands in when no gateway is configured.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier { return &LogNotifier{log: log} }

func (l *LogNotifier) Notify(ctx context.Context, n *Notification) error {
	logctx.FromCtx(ctx, l.log).Infow("notification_logged",
		"user_id", n.UserID, "from", n.From, "to", n.To, "title", n.Title)
	return nil
}

type smsSender interface {
	Send(ctx context.Context, to, text string) error
}

type SMSNotifier struct {
	client smsSender
}

func NewSMSNotifier(c *messaging.SMSClient) *SMSNotifier { return &SMSNotifier{client: c} }

// Notify skips users without a phone number.
func (s *SMSNotifier) Notify(ctx context.Context, n *Notification) error {
	if n.Phone == "" {
		return nil
	}
	if err := s.client.Send(ctx, n.Phone, n.Title+": "+n.Body); err != nil {
		metrics.NotificationFailures.WithLabelValues("sms").Inc()
		return fmt.Errorf("sms %s: %w", n.UserID, err)
	}
	return nil
}

type pushSender interface {
	Send(ctx context.Context, msg *messaging.PushMessage) error
}

type PushNotifier struct {
	client pushSender
}

func NewPushNotifier(c *messaging.PushClient) *PushNotifier { return &PushNotifier{client: c} }

// Notify skips users without a registered device.
func (p *PushNotifier) Notify(ctx context.Context, n *Notification) error {
	if n.PushToken == "" {
		return nil
	}
	err := p.client.Send(ctx, &messaging.PushMessage{
		Token: n.PushToken,
		Title: n.Title,
		Body:  n.Body,
		Data:  map[string]string{"account_status": string(n.To)},
	})
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("push").Inc()
		return fmt.Errorf("push %s: %w", n.UserID, err)
	}
	return nil
}

// New assembles the configured channels. With no gateway configured every
// notification is only logged.
func New(cfg *config.Config, log *zap.SugaredLogger) Notifier {
	nc := cfg.Notification
	var out MultiNotifier
	if sms := messaging.NewSMSClient(nc.SMSGatewayURL, nc.SMSAPIKey, nc.Timeout); sms.Configured() {
		out = append(out, NewSMSNotifier(sms))
	}
	if push := messaging.NewPushClient(nc.PushGatewayURL, nc.PushAPIKey, nc.Timeout); push.Configured() {
		out = append(out, NewPushNotifier(push))
	}
	if len(out) == 0 {
		log.Infow("notifier_log_only")
		return NewLogNotifier(log)
	}
	return out
}
