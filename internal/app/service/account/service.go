package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/internal/platform/db"
	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/metrics"
	"github.com/fatflowers/billingsync/pkg/types"
)

var ErrInvalidTransfer = errors.New("transfer needs distinct source and destination accounts")

const maxTxAttempts = 3

// Transition is one persisted change of an account record.
type Transition struct {
	UserID string
	From   types.AccountStatus
	To     types.AccountStatus
	Before *models.UserAccount
	After  *models.UserAccount
}

func (t *Transition) StatusChanged() bool { return t.From != t.To }

type Service struct {
	store Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(store Store, log *zap.SugaredLogger) *Service {
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Mutating reports whether events of type t can change an account.
func Mutating(t types.EventType) bool {
	switch t {
	case types.EventTypeTest, types.EventTypeProductChange, types.EventTypeUnknown:
		return false
	}
	return true
}

// ApplyEvent derives and persists the transitions ev causes. Non-mutating
// events return no transitions and touch nothing.
func (s *Service) ApplyEvent(ctx context.Context, ev *Event) ([]*Transition, error) {
	lg := logctx.FromCtx(ctx, s.log).With("event_id", ev.ID, "event_type", ev.RawType)
	if !Mutating(ev.Type) {
		if ev.Type == types.EventTypeUnknown {
			lg.Warnw("account_event_type_unknown")
		} else {
			lg.Infow("account_event_ignored")
		}
		return nil, nil
	}

	now := s.now()
	var out []*Transition
	err := s.inTx(ctx, func(st Store) error {
		out = out[:0]
		switch ev.Type {
		case types.EventTypeTransfer:
			ts, err := s.applyTransfer(ctx, st, ev, now)
			out = append(out, ts...)
			return err
		case types.EventTypeSubscriberAlias:
			user, err := s.resolveAlias(ctx, st, ev)
			if err != nil {
				return err
			}
			t, err := s.applyOne(ctx, st, user, ev, now)
			if t != nil {
				out = append(out, t)
			}
			return err
		default:
			user, err := st.GetUser(ctx, ev.UserID)
			if err != nil {
				return err
			}
			t, err := s.applyOne(ctx, st, user, ev, now)
			if t != nil {
				out = append(out, t)
			}
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	for _, t := range out {
		metrics.AccountTransitions.WithLabelValues(string(t.From), string(t.To), string(ev.Type)).Inc()
		lg.Infow("account_transition", "user_id", t.UserID, "from", t.From, "to", t.To)
	}
	return out, nil
}

// ApplyPurchase records a purchase confirmed directly with the billing
// provider, outside the webhook flow.
func (s *Service) ApplyPurchase(ctx context.Context, userID, customerID, subscriptionID, productID string) (*models.UserAccount, error) {
	ev := &Event{
		Type:           types.EventTypeInitialPurchase,
		RawType:        string(types.EventTypeInitialPurchase),
		UserID:         userID,
		OccurredAt:     s.now(),
		ProductID:      productID,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
	}
	ts, err := s.ApplyEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	if len(ts) > 0 {
		return ts[0].After, nil
	}
	return s.store.FindUser(ctx, userID)
}

func (s *Service) GetAccount(ctx context.Context, userID string) (*models.UserAccount, error) {
	return s.store.FindUser(ctx, userID)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// History lists the persisted transitions of an existing account, newest
// first. limit is clamped to [1, 500]; zero means 50.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.AccountStatusLog, error) {
	if _, err := s.store.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return s.store.History(ctx, userID, limit)
}

// inTx runs fn in one transaction, retrying on serialization failures and
// deadlocks.
func (s *Service) inTx(ctx context.Context, fn func(Store) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.store.Transaction(ctx, fn)
		if err == nil || !db.IsRetryable(err) {
			return err
		}
		logctx.FromCtx(ctx, s.log).Warnw("account_tx_retry", "attempt", attempt, "err", err)
	}
	return err
}

// applyOne persists the derived state of user. It returns nil when the
// event leaves the record as it is.
func (s *Service) applyOne(ctx context.Context, st Store, user *models.UserAccount, ev *Event, now time.Time) (*Transition, error) {
	d := DeriveStatus(user, ev, now)
	if !d.Mutates {
		return nil, nil
	}
	after := user.Clone()
	after.AccountStatus = d.Status
	if d.StampPayment {
		after.LastPaymentDate = lo.ToPtr(now)
	}
	if ev.CustomerID != "" {
		after.BillingCustomerID = lo.ToPtr(ev.CustomerID)
	}
	if ev.SubscriptionID != "" {
		after.BillingSubscriptionID = lo.ToPtr(ev.SubscriptionID)
	}
	return s.save(ctx, st, user, after, ev, now)
}

// applyTransfer freezes the source and strips its billing references, then
// activates the destination with those references. Accounts are locked in
// id order so concurrent transfers cannot deadlock.
func (s *Service) applyTransfer(ctx context.Context, st Store, ev *Event, now time.Time) ([]*Transition, error) {
	srcID, dstID := ev.TransferSource(), ev.TransferDestination()
	if srcID == "" || dstID == "" || srcID == dstID {
		return nil, fmt.Errorf("%w: from=%q to=%q", ErrInvalidTransfer, srcID, dstID)
	}

	ids := []string{srcID, dstID}
	sort.Strings(ids)
	loaded := make(map[string]*models.UserAccount, 2)
	for _, id := range ids {
		u, err := st.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		loaded[id] = u
	}
	src, dst := loaded[srcID], loaded[dstID]

	srcAfter := src.Clone()
	srcAfter.AccountStatus = DeriveStatus(src, ev, now).Status
	srcAfter.BillingCustomerID = nil
	srcAfter.BillingSubscriptionID = nil

	dstAfter := dst.Clone()
	dstAfter.AccountStatus = DeriveStatus(dst, ev, now).Status
	dstAfter.BillingCustomerID = lo.Ternary(ev.CustomerID != "", lo.ToPtr(ev.CustomerID), src.BillingCustomerID)
	dstAfter.BillingSubscriptionID = lo.Ternary(ev.SubscriptionID != "", lo.ToPtr(ev.SubscriptionID), src.BillingSubscriptionID)

	var out []*Transition
	for _, pair := range [][2]*models.UserAccount{{src, srcAfter}, {dst, dstAfter}} {
		t, err := s.save(ctx, st, pair[0], pair[1], ev, now)
		if err != nil {
			return nil, err
		}
		if t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

// resolveAlias finds the record an alias event refers to: the event's user
// id first, then each alias in order.
func (s *Service) resolveAlias(ctx context.Context, st Store, ev *Event) (*models.UserAccount, error) {
	candidates := lo.Uniq(lo.Compact(append([]string{ev.UserID}, ev.Aliases...)))
	for _, id := range candidates {
		u, err := st.GetUser(ctx, id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: alias candidates %v", ErrUserNotFound, candidates)
}

func (s *Service) save(ctx context.Context, st Store, before, after *models.UserAccount, ev *Event, now time.Time) (*Transition, error) {
	if !recordChanged(before, after) {
		return nil, nil
	}
	after.UpdatedAt = now
	if err := st.SaveTransition(ctx, before, after, ev); err != nil {
		return nil, err
	}
	return &Transition{
		UserID: after.ID,
		From:   before.AccountStatus,
		To:     after.AccountStatus,
		Before: before,
		After:  after,
	}, nil
}

func recordChanged(before, after *models.UserAccount) bool {
	return before.AccountStatus != after.AccountStatus ||
		!equalTime(before.LastPaymentDate, after.LastPaymentDate) ||
		lo.FromPtr(before.BillingCustomerID) != lo.FromPtr(after.BillingCustomerID) ||
		lo.FromPtr(before.BillingSubscriptionID) != lo.FromPtr(after.BillingSubscriptionID) ||
		(before.BillingCustomerID == nil) != (after.BillingCustomerID == nil) ||
		(before.BillingSubscriptionID == nil) != (after.BillingSubscriptionID == nil)
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
