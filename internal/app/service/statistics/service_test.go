package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/billingsync/internal/app/service/webhooklog"
	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/internal/platform/db/dbtest"
	"github.com/fatflowers/billingsync/pkg/config"
	"github.com/fatflowers/billingsync/pkg/tool"
	"github.com/fatflowers/billingsync/pkg/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb := dbtest.New(t)
	events := webhooklog.New(&config.Config{}, gdb, zap.NewNop().Sugar())
	return New(gdb, events), gdb
}

func seedAccounts(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	for _, u := range []*models.UserAccount{
		{ID: "a", AccountStatus: types.AccountStatusActive},
		{ID: "b", AccountStatus: types.AccountStatusActive},
		{ID: "c", AccountStatus: types.AccountStatusFrozen},
		{ID: "d", AccountStatus: types.AccountStatusActiveFree, IsMember: true},
	} {
		require.NoError(t, gdb.Create(u).Error)
	}
}

func seedTransitions(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	day1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	for _, l := range []*models.AccountStatusLog{
		{UserID: "a", Reason: "RENEWAL", FromStatus: types.AccountStatusPastDue, ToStatus: types.AccountStatusActive, CreatedAt: day1},
		{UserID: "b", Reason: "RENEWAL", FromStatus: types.AccountStatusFrozen, ToStatus: types.AccountStatusActive, CreatedAt: day1},
		{UserID: "c", Reason: "EXPIRATION", FromStatus: types.AccountStatusActive, ToStatus: types.AccountStatusFrozen, CreatedAt: day2},
	} {
		l.ID = tool.GenerateUUIDV7()
		require.NoError(t, gdb.Create(l).Error)
	}
}

func TestGetStatisticDefaults(t *testing.T) {
	s, gdb := newTestService(t)
	seedAccounts(t, gdb)

	res, err := s.GetStatistic(context.Background(), &StatisticRequest{})
	require.NoError(t, err)
	require.Len(t, res.DataItems, len(DefaultDataItems))

	require.Equal(t, []StatisticResponseDataItem{
		{Label: "active", Value: 2},
		{Label: "active_free", Value: 1},
		{Label: "frozen", Value: 1},
	}, res.DataItems[StatisticTypeAccountStatusCount])
	require.Equal(t, int64(1), res.DataItems[StatisticTypeExemptAccountCount][0].Value)
	require.Equal(t, int64(0), res.DataItems[StatisticTypeWebhookEventCount][0].Value)
}

func TestGetStatisticDailyTransitions(t *testing.T) {
	s, gdb := newTestService(t)
	seedTransitions(t, gdb)

	res, err := s.GetStatistic(context.Background(), &StatisticRequest{
		DataItems: []*StatisticDataItem{{ID: StatisticTypeDailyTransitionCount}},
	})
	require.NoError(t, err)
	require.Equal(t, []StatisticResponseDataItem{
		{Date: "2025-05-02", Label: "frozen", Value: 1},
		{Date: "2025-05-01", Label: "active", Value: 2},
	}, res.DataItems[StatisticTypeDailyTransitionCount])

	res, err = s.GetStatistic(context.Background(), &StatisticRequest{
		Filters:   []types.CommonFilter{{Field: "reason", Operator: types.CommonFilterOperatorEq, Values: []any{"EXPIRATION"}}},
		DataItems: []*StatisticDataItem{{ID: StatisticTypeDailyTransitionCount}, {ID: StatisticTypeAccountStatusCount}},
	})
	require.NoError(t, err)
	require.Equal(t, []StatisticResponseDataItem{
		{Date: "2025-05-02", Label: "frozen", Value: 1},
	}, res.DataItems[StatisticTypeDailyTransitionCount])
}

func TestGetStatisticRejects(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.GetStatistic(context.Background(), &StatisticRequest{
		Filters: []types.CommonFilter{{Field: "password", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}},
	})
	require.Error(t, err)

	_, err = s.GetStatistic(context.Background(), &StatisticRequest{
		DataItems: []*StatisticDataItem{{ID: "daily_gmv"}},
	})
	require.ErrorContains(t, err, "invalid data item id")
}
