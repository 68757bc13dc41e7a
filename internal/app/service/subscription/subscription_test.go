package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/platform/db/dbtest"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/types"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, ledger.Store, *gorm.DB) {
	t.Helper()
	gdb := dbtest.New(t)
	store := ledger.NewGormStore(gdb)
	catalog, err := plan.NewCatalog(&config.Config{})
	require.NoError(t, err)
	return NewService(catalog, clock.NewFake(testNow), zap.NewNop().Sugar()), store, gdb
}

func checkout(planID types.PlanID, start time.Time) Change {
	return Change{
		UserID:                 "u1",
		PlanID:                 planID,
		ExternalSubscriptionID: "ext-sub-1",
		ExternalCustomerID:     "cus-1",
		PeriodStart:            start,
		PeriodEnd:              start.AddDate(0, 1, 0),
		EventID:                "evt-1",
	}
}

func subscriptionLogs(t *testing.T, gdb *gorm.DB) []*models.SubscriptionLog {
	t.Helper()
	var logs []*models.SubscriptionLog
	require.NoError(t, gdb.Order("created_at ASC").Order("id ASC").Find(&logs).Error)
	return logs
}

func TestChangeReason(t *testing.T) {
	base := &models.Subscription{PlanID: types.PlanStarter, CurrentPeriodStart: testNow}

	tests := []struct {
		name  string
		after models.Subscription
		want  types.SubscriptionChangeReason
	}{
		{"unchanged", models.Subscription{PlanID: types.PlanStarter, CurrentPeriodStart: testNow}, ""},
		{"plan change wins over renewal", models.Subscription{PlanID: types.PlanBusiness, CurrentPeriodStart: testNow.AddDate(0, 1, 0)}, types.SubscriptionChangeReasonPlanChange},
		{"period start moved forward", models.Subscription{PlanID: types.PlanStarter, CurrentPeriodStart: testNow.AddDate(0, 1, 0)}, types.SubscriptionChangeReasonRenewal},
		{"period start moved backward", models.Subscription{PlanID: types.PlanStarter, CurrentPeriodStart: testNow.AddDate(0, 0, -1)}, types.SubscriptionChangeReasonRenewal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, changeReason(base, &tt.after))
		})
	}
	assert.Equal(t, types.SubscriptionChangeReasonPurchase, changeReason(nil, base))
}

func TestActivate_CreatesThenUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	svc, store, gdb := newTestService(t)

	first, err := svc.Activate(ctx, store, checkout(types.PlanStarter, testNow))
	require.NoError(t, err)
	assert.Nil(t, first.Before)
	assert.True(t, first.Regrant)
	assert.Equal(t, types.SubscriptionChangeReasonPurchase, first.Reason)

	second, err := svc.Activate(ctx, store, checkout(types.PlanProfessional, testNow))
	require.NoError(t, err)
	assert.Equal(t, first.Subscription.ID, second.Subscription.ID)
	assert.Equal(t, types.SubscriptionChangeReasonPlanChange, second.Reason)
	require.NotNil(t, second.Before)
	assert.Equal(t, types.PlanStarter, second.Before.PlanID)

	var count int64
	require.NoError(t, gdb.Model(&models.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	logs := subscriptionLogs(t, gdb)
	require.Len(t, logs, 2)
	assert.Nil(t, logs[0].Before.Data())
	assert.Equal(t, "evt-1", logs[1].EventID)
	require.NotNil(t, logs[1].After.Data())
	assert.Equal(t, types.PlanProfessional, logs[1].After.Data().PlanID)
}

func TestActivate_Validation(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	ch := checkout(types.PlanID("gold"), testNow)
	_, err := svc.Activate(ctx, store, ch)
	require.ErrorIs(t, err, plan.ErrPlanNotFound)

	ch = checkout(types.PlanStarter, testNow)
	ch.PeriodEnd = time.Time{}
	_, err = svc.Activate(ctx, store, ch)
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)

	ch = checkout(types.PlanStarter, testNow)
	ch.UserID = ""
	_, err = svc.Activate(ctx, store, ch)
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)
}

func TestActivate_ProvisionsUserWithOrganization(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	ch := checkout(types.PlanStarter, testNow)
	ch.UserID = "fresh-user"
	ch.OrganizationID = "org-7"
	_, err := svc.Activate(ctx, store, ch)
	require.NoError(t, err)

	user, err := store.GetUser(ctx, "fresh-user")
	require.NoError(t, err)
	assert.Equal(t, "org-7", user.OrganizationID)
}

func TestUpdate_RenewalAndNoop(t *testing.T) {
	ctx := context.Background()
	svc, store, gdb := newTestService(t)
	_, err := svc.Activate(ctx, store, checkout(types.PlanStarter, testNow))
	require.NoError(t, err)

	same, err := svc.Update(ctx, store, Change{ExternalSubscriptionID: "ext-sub-1", PeriodStart: testNow})
	require.NoError(t, err)
	assert.False(t, same.Changed)
	assert.False(t, same.Regrant)

	extended, err := svc.Update(ctx, store, Change{ExternalSubscriptionID: "ext-sub-1", PeriodEnd: testNow.AddDate(0, 2, 0)})
	require.NoError(t, err)
	assert.True(t, extended.Changed)
	assert.False(t, extended.Regrant)
	assert.Equal(t, types.SubscriptionChangeReasonUpdate, extended.Reason)

	next := testNow.AddDate(0, 2, 0)
	renewed, err := svc.Update(ctx, store, Change{
		ExternalSubscriptionID: "ext-sub-1", PeriodStart: next, PeriodEnd: next.AddDate(0, 1, 0), EventID: "evt-2",
	})
	require.NoError(t, err)
	assert.True(t, renewed.Regrant)
	assert.Equal(t, types.SubscriptionChangeReasonRenewal, renewed.Reason)
	assert.True(t, renewed.Subscription.CurrentPeriodStart.Equal(next))

	assert.Len(t, subscriptionLogs(t, gdb), 3)
}

func TestUpdate_UnknownOrCancelled(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	_, err := svc.Update(ctx, store, Change{ExternalSubscriptionID: "nope"})
	require.ErrorIs(t, err, ledger.ErrSubscriptionNotFound)

	_, err = svc.Activate(ctx, store, checkout(types.PlanStarter, testNow))
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, store, "ext-sub-1", "evt-3")
	require.NoError(t, err)

	_, err = svc.Update(ctx, store, Change{ExternalSubscriptionID: "ext-sub-1", PlanID: types.PlanBusiness})
	require.ErrorIs(t, err, ledger.ErrSubscriptionNotFound)
}

func TestCancel_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, gdb := newTestService(t)
	_, err := svc.Activate(ctx, store, checkout(types.PlanStarter, testNow))
	require.NoError(t, err)

	first, err := svc.Cancel(ctx, store, "ext-sub-1", "evt-3")
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, types.SubscriptionStatusCancelled, first.Subscription.Status)
	require.NotNil(t, first.Subscription.CancelledAt)

	again, err := svc.Cancel(ctx, store, "ext-sub-1", "evt-4")
	require.NoError(t, err)
	assert.False(t, again.Changed)

	active, err := store.GetActiveSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Len(t, subscriptionLogs(t, gdb), 2)
}
