package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/platform/db/dbtest"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func credit(userID string, source types.CreditSourceType, status types.CreditStatus, createdAt time.Time) *models.Credit {
	c := &models.Credit{
		ID:         tool.GenerateUUIDV7(),
		UserID:     userID,
		SourceType: source,
		Status:     status,
		Priority:   source.Priority(),
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if status == types.CreditStatusUsed {
		usedAt := createdAt.Add(time.Hour)
		c.UsedAt = &usedAt
	}
	return c
}

func newTestService(t *testing.T) (*Service, ledger.Store) {
	t.Helper()
	gdb := dbtest.New(t)
	store := ledger.NewGormStore(gdb)
	ctx := context.Background()
	day1 := testNow.AddDate(0, 0, -1)

	require.NoError(t, store.BulkInsertCredits(ctx, []*models.Credit{
		credit("u1", types.CreditSourceSubscription, types.CreditStatusActive, day1),
		credit("u1", types.CreditSourceSubscription, types.CreditStatusUsed, day1),
		credit("u1", types.CreditSourcePurchase, types.CreditStatusActive, testNow),
		credit("u2", types.CreditSourceReferral, types.CreditStatusActive, testNow),
	}))
	require.NoError(t, store.InsertCreditLogs(ctx, []*models.CreditLog{{
		ID:         tool.GenerateUUIDV7(),
		UserID:     "u1",
		CreditID:   tool.GenerateUUIDV7(),
		SourceType: types.CreditSourceSubscription,
		Reason:     types.CreditChangeReasonSuperseded,
		CreatedAt:  testNow,
	}}))
	for _, sub := range []*models.Subscription{
		{ID: tool.GenerateUUIDV7(), UserID: "u1", PlanID: types.PlanStarter, Status: types.SubscriptionStatusActive},
		{ID: tool.GenerateUUIDV7(), UserID: "u2", PlanID: types.PlanStarter, Status: types.SubscriptionStatusActive},
		{ID: tool.GenerateUUIDV7(), UserID: "u3", PlanID: types.PlanBusiness, Status: types.SubscriptionStatusCancelled},
	} {
		require.NoError(t, store.SaveSubscription(ctx, sub))
	}
	return New(gdb, clock.NewFake(testNow)), store
}

func items(ids ...StatisticType) []*CreditStatisticDataItem {
	out := make([]*CreditStatisticDataItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, &CreditStatisticDataItem{ID: id})
	}
	return out
}

func TestGetCreditStatistic(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.GetCreditStatistic(context.Background(), &CreditStatisticRequest{
		DataItems: items(
			StatisticTypeDailyCreditsGranted,
			StatisticTypeDailyCreditsUsed,
			StatisticTypeDailyCreditsSuperseded,
			StatisticTypeActiveCreditCount,
			StatisticTypeActiveSubscriptionCount,
		),
	})
	require.NoError(t, err)

	assert.Equal(t, []CreditStatisticResponseDataItem{
		{Date: "2026-03-10", Label: "purchase", Value: 1},
		{Date: "2026-03-10", Label: "referral", Value: 1},
		{Date: "2026-03-09", Label: "subscription", Value: 2},
	}, res.DataItems[StatisticTypeDailyCreditsGranted])
	assert.Equal(t, []CreditStatisticResponseDataItem{
		{Date: "2026-03-09", Label: "subscription", Value: 1},
	}, res.DataItems[StatisticTypeDailyCreditsUsed])
	assert.Equal(t, []CreditStatisticResponseDataItem{
		{Date: "2026-03-10", Label: "subscription", Value: 1},
	}, res.DataItems[StatisticTypeDailyCreditsSuperseded])
	assert.Equal(t, []CreditStatisticResponseDataItem{
		{Label: "purchase", Value: 1},
		{Label: "referral", Value: 1},
		{Label: "subscription", Value: 1},
	}, res.DataItems[StatisticTypeActiveCreditCount])
	assert.Equal(t, []CreditStatisticResponseDataItem{
		{Label: "starter", Value: 2},
	}, res.DataItems[StatisticTypeActiveSubscriptionCount])
}

func TestGetCreditStatistic_Filters(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.GetCreditStatistic(context.Background(), &CreditStatisticRequest{
		Filters: []*types.CommonFilter{
			{Field: "source_type", Operator: types.CommonFilterOperatorEq, Values: []any{"subscription"}},
			{Field: "user_id", Operator: types.CommonFilterOperatorEq, Values: []any{"u1"}},
		},
		DataItems: items(StatisticTypeActiveCreditCount, StatisticTypeActiveSubscriptionCount),
	})
	require.NoError(t, err)

	assert.Equal(t, []CreditStatisticResponseDataItem{
		{Label: "subscription", Value: 1},
	}, res.DataItems[StatisticTypeActiveCreditCount])
	// source_type does not apply to subscriptions
	assert.Nil(t, res.DataItems[StatisticTypeActiveSubscriptionCount])
	assert.Contains(t, res.DataItems, StatisticTypeActiveSubscriptionCount)
}

func TestGetCreditStatistic_Invalid(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetCreditStatistic(context.Background(), &CreditStatisticRequest{})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.GetCreditStatistic(context.Background(), &CreditStatisticRequest{DataItems: items("nope")})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
}

func TestGetCreditStatistic_RejectsUnknownFilterField(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetCreditStatistic(context.Background(), &CreditStatisticRequest{
		Filters:   []*types.CommonFilter{{Field: "value_usd", Operator: types.CommonFilterOperatorGt, Values: []any{0}}},
		DataItems: items(StatisticTypeActiveCreditCount),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
}
