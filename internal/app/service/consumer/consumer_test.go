package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/creditledger/internal/app/service/allocator"
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/app/service/usage"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/platform/db/dbtest"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyLowCredit(ctx context.Context, userID string, remaining int64) {
	m.Called(ctx, userID, remaining)
}

func (m *mockNotifier) NotifyCreditExpiration(ctx context.Context, userID string, count int64, expiresAt time.Time) {
	m.Called(ctx, userID, count, expiresAt)
}

func (m *mockNotifier) NotifyPaymentFailed(ctx context.Context, userID, subscriptionID string) {
	m.Called(ctx, userID, subscriptionID)
}

type fixture struct {
	consumer   *Consumer
	allocator  *allocator.Allocator
	accountant *usage.Accountant
	store      ledger.Store
	db         *gorm.DB
	notifier   *mockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.New(t)
	store := ledger.NewGormStore(gdb)
	cfg := &config.Config{Ledger: config.LedgerConfig{LowCreditThreshold: 2, ClaimRetries: 3}}
	catalog, err := plan.NewCatalog(cfg)
	require.NoError(t, err)
	clk := clock.NewFake(testNow)
	log := zap.NewNop().Sugar()
	notifier := &mockNotifier{}
	accountant := usage.NewAccountant(store, catalog, clk, log)
	return &fixture{
		consumer:   NewConsumer(store, accountant, notifier, cfg, nil, clk, log),
		allocator:  allocator.NewAllocator(store, catalog, nil, nil, clk, log),
		accountant: accountant,
		store:      store,
		db:         gdb,
		notifier:   notifier,
	}
}

func (f *fixture) seed(t *testing.T, userID string, source types.CreditSourceType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.store.InsertCredit(context.Background(), &models.Credit{
			ID:         tool.GenerateUUIDV7(),
			UserID:     userID,
			SourceType: source,
			Status:     types.CreditStatusActive,
			Priority:   source.Priority(),
			CreatedAt:  testNow.Add(time.Duration(i) * time.Second),
		}))
	}
}

func (f *fixture) counterRows(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.UsagePeriodCounter{}).Count(&n).Error)
	return n
}

func TestUseCredit_SubscriptionGrantThenBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.allocator.GrantSubscriptionCredits(ctx, allocator.SubscriptionGrant{
		UserID: "u1", PlanID: types.PlanStarter, SubscriptionID: "sub-1", PeriodEnd: testNow.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	bal, err := f.accountant.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), bal.AvailableCredits)
	assert.Equal(t, int64(4), bal.Breakdown.Subscription)
}

func TestUseCredit_PriorityOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "u1", types.CreditSourceReferral, 2)
	f.seed(t, "u1", types.CreditSourcePurchase, 1)
	f.notifier.On("NotifyLowCredit", mock.Anything, "u1", mock.Anything).Return()

	first, err := f.consumer.UseCredit(ctx, "u1", types.FeatureBlogPost, "post-1")
	require.NoError(t, err)
	assert.Equal(t, types.CreditSourcePurchase, first.SourceType)
	assert.Equal(t, int64(2), first.Remaining)

	second, err := f.consumer.UseCredit(ctx, "u1", types.FeatureBlogPost, "post-2")
	require.NoError(t, err)
	assert.Equal(t, types.CreditSourceReferral, second.SourceType)
	assert.Equal(t, int64(1), second.Remaining)

	var used models.Credit
	require.NoError(t, f.db.First(&used, "id = ?", first.CreditID).Error)
	assert.Equal(t, types.CreditStatusUsed, used.Status)
	require.NotNil(t, used.UsedForID)
	assert.Equal(t, "post-1", *used.UsedForID)
	require.NotNil(t, used.UsedAt)
	assert.True(t, used.UsedAt.Equal(testNow))

	f.notifier.AssertCalled(t, "NotifyLowCredit", mock.Anything, "u1", int64(2))
	f.notifier.AssertCalled(t, "NotifyLowCredit", mock.Anything, "u1", int64(1))
}

func TestUseCredit_NoWarningAboveThresholdOrAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "u1", types.CreditSourcePurchase, 4)
	f.notifier.On("NotifyLowCredit", mock.Anything, "u1", mock.Anything).Return()

	_, err := f.consumer.UseCredit(ctx, "u1", types.FeatureSocialPost, "")
	require.NoError(t, err)
	f.notifier.AssertNotCalled(t, "NotifyLowCredit", mock.Anything, "u1", int64(3))

	for i := 0; i < 3; i++ {
		_, err = f.consumer.UseCredit(ctx, "u1", types.FeatureSocialPost, "")
		require.NoError(t, err)
	}
	f.notifier.AssertNotCalled(t, "NotifyLowCredit", mock.Anything, "u1", int64(0))
	f.notifier.AssertNumberOfCalls(t, "NotifyLowCredit", 2)
}

func TestUseCredit_UpgradeKeepsUsedCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.On("NotifyLowCredit", mock.Anything, mock.Anything, mock.Anything).Return()
	periodEnd := testNow.AddDate(0, 1, 0)

	_, err := f.allocator.GrantSubscriptionCredits(ctx, allocator.SubscriptionGrant{
		UserID: "u1", PlanID: types.PlanStarter, SubscriptionID: "sub-1", PeriodEnd: periodEnd,
	})
	require.NoError(t, err)
	_, err = f.consumer.UseCredit(ctx, "u1", types.FeatureBlogPost, "post-1")
	require.NoError(t, err)

	_, err = f.allocator.GrantSubscriptionCredits(ctx, allocator.SubscriptionGrant{
		UserID: "u1", PlanID: types.PlanProfessional, SubscriptionID: "sub-1", PeriodEnd: periodEnd,
	})
	require.NoError(t, err)

	var active []*models.Credit
	require.NoError(t, f.db.Where("user_id = ? AND status = ?", "u1", types.CreditStatusActive).Find(&active).Error)
	require.Len(t, active, 8)
	for _, c := range active {
		assert.InDelta(t, 6.25, c.ValueUSD, 0.001)
	}

	bal, err := f.accountant.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), bal.AvailableCredits)
	assert.Equal(t, int64(1), bal.UsedCredits)
}

func TestUseCredit_InsufficientLeavesCountersUntouched(t *testing.T) {
	f := newFixture(t)

	_, err := f.consumer.UseCredit(context.Background(), "u1", types.FeatureBlogPost, "post-1")
	require.ErrorIs(t, err, ledger.ErrInsufficientCredits)
	assert.Zero(t, f.counterRows(t))
	f.notifier.AssertNotCalled(t, "NotifyLowCredit", mock.Anything, mock.Anything, mock.Anything)
}

func TestUseCredit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.consumer.UseCredit(ctx, "", types.FeatureBlogPost, "")
	require.ErrorIs(t, err, ledger.ErrUserNotFound)
	_, err = f.consumer.UseCredit(ctx, "u1", types.FeatureType("podcast"), "")
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)
	// never granted anything: nothing to spend
	_, err = f.consumer.UseCredit(ctx, "ghost", types.FeatureBlogPost, "")
	require.ErrorIs(t, err, ledger.ErrInsufficientCredits)
}

func TestUseCredit_ExpiredCreditsAreNotSpent(t *testing.T) {
	f := newFixture(t)
	past := testNow.Add(-time.Minute)
	require.NoError(t, f.store.InsertCredit(context.Background(), &models.Credit{
		ID: tool.GenerateUUIDV7(), UserID: "u1", SourceType: types.CreditSourceSubscription,
		Status: types.CreditStatusActive, Priority: types.CreditPrioritySubscription, ExpiresAt: &past,
	}))

	_, err := f.consumer.UseCredit(context.Background(), "u1", types.FeatureBlogPost, "")
	require.ErrorIs(t, err, ledger.ErrInsufficientCredits)
}

func TestUseCredit_Unlimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.SaveSubscription(ctx, &models.Subscription{
		ID: tool.GenerateUUIDV7(), UserID: "u1", PlanID: types.PlanUnlimited, Status: types.SubscriptionStatusActive,
		CurrentPeriodStart: testNow.AddDate(0, 0, -1), CurrentPeriodEnd: testNow.AddDate(0, 1, 0),
	}))
	f.seed(t, "u1", types.CreditSourcePurchase, 1)

	for i := 0; i < 3; i++ {
		res, err := f.consumer.UseCredit(ctx, "u1", types.FeatureWebsiteAnalysis, "")
		require.NoError(t, err)
		assert.True(t, res.Unlimited)
		assert.Empty(t, res.CreditID)
		assert.Equal(t, usage.UnlimitedCredits, res.Remaining)
	}

	// purchased credits stay untouched while the plan is unlimited
	n, err := f.store.CountActive(ctx, "u1", testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	u, err := f.accountant.GetUsage(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u.Counters, 1)
	assert.Equal(t, int64(3), u.Counters[0].UsageCount)
	assert.Nil(t, u.Counters[0].LimitCount)
}

func TestUseCredit_ConcurrentSingleCredit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", types.CreditSourcePurchase, 1)

	const workers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		short   int
		otherEr []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.consumer.UseCredit(context.Background(), "u1", types.FeatureEmailCampaign, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ledger.ErrInsufficientCredits):
				short++
			default:
				otherEr = append(otherEr, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, otherEr)
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, short)

	var used int64
	require.NoError(t, f.db.Model(&models.Credit{}).Where("status = ?", types.CreditStatusUsed).Count(&used).Error)
	assert.Equal(t, int64(1), used)
}
