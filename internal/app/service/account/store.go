package account

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/pkg/tool"
)

var ErrUserNotFound = errors.New("user account not found")

// Store persists account records and their transition log.
type Store interface {
	// GetUser loads a record, locking it for update inside a transaction.
	GetUser(ctx context.Context, id string) (*models.UserAccount, error)
	// FindUser loads a record without locking.
	FindUser(ctx context.Context, id string) (*models.UserAccount, error)
	// SaveTransition writes after over the stored record and logs the change.
	SaveTransition(ctx context.Context, before, after *models.UserAccount, ev *Event) error
	// Transaction runs fn against a Store bound to one database transaction.
	Transaction(ctx context.Context, fn func(Store) error) error
	// History returns the most recent transitions of userID, newest first.
	History(ctx context.Context, userID string, limit int) ([]*models.AccountStatusLog, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (s *gormStore) GetUser(ctx context.Context, id string) (*models.UserAccount, error) {
	return s.takeUser(s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *gormStore) FindUser(ctx context.Context, id string) (*models.UserAccount, error) {
	return s.takeUser(s.db.WithContext(ctx), id)
}

func (s *gormStore) takeUser(q *gorm.DB, id string) (*models.UserAccount, error) {
	var u models.UserAccount
	err := q.Where("id = ?", id).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (s *gormStore) SaveTransition(ctx context.Context, before, after *models.UserAccount, ev *Event) error {
	res := s.db.WithContext(ctx).Model(&models.UserAccount{}).
		Where("id = ?", after.ID).
		Updates(map[string]any{
			"account_status":          after.AccountStatus,
			"last_payment_date":       after.LastPaymentDate,
			"billing_customer_id":     after.BillingCustomerID,
			"billing_subscription_id": after.BillingSubscriptionID,
			"updated_at":              after.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update user %s: %w", after.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, after.ID)
	}

	entry := &models.AccountStatusLog{
		ID:         tool.GenerateUUIDV7(),
		UserID:     after.ID,
		EventID:    tool.NilIfEmpty(ev.ID),
		Reason:     string(ev.Type),
		FromStatus: before.AccountStatus,
		ToStatus:   after.AccountStatus,
		Before:     datatypes.NewJSONType(before),
		After:      datatypes.NewJSONType(after),
		CreatedAt:  after.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("log transition %s: %w", after.ID, err)
	}
	return nil
}

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) History(ctx context.Context, userID string, limit int) ([]*models.AccountStatusLog, error) {
	var out []*models.AccountStatusLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
