package expiration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
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

func newTestSweeper(t *testing.T, batch int) (*Sweeper, ledger.Store, *gorm.DB, *clock.Fake, *mockNotifier) {
	t.Helper()
	gdb := dbtest.New(t)
	store := ledger.NewGormStore(gdb)
	clk := clock.NewFake(testNow)
	notifier := &mockNotifier{}
	cfg := &config.Config{Expiration: config.ExpirationConfig{BatchSize: batch, WarnWithin: 72 * time.Hour}}
	return NewSweeper(store, notifier, cfg, nil, clk, zap.NewNop().Sugar()), store, gdb, clk, notifier
}

func seed(t *testing.T, store ledger.Store, userID string, expiresAt *time.Time) {
	t.Helper()
	require.NoError(t, store.InsertCredit(context.Background(), &models.Credit{
		ID:         tool.GenerateUUIDV7(),
		UserID:     userID,
		SourceType: types.CreditSourceSubscription,
		Status:     types.CreditStatusActive,
		Priority:   types.CreditPrioritySubscription,
		ExpiresAt:  expiresAt,
	}))
}

func TestSweep_ExpiresInBatchesAndLogs(t *testing.T) {
	ctx := context.Background()
	s, store, gdb, _, _ := newTestSweeper(t, 2)
	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)
	for i := 0; i < 5; i++ {
		seed(t, store, "u1", &past)
	}
	seed(t, store, "u1", &future)
	seed(t, store, "u1", nil)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	var expired int64
	require.NoError(t, gdb.Model(&models.Credit{}).Where("status = ?", types.CreditStatusExpired).Count(&expired).Error)
	assert.Equal(t, int64(5), expired)

	var logs []*models.CreditLog
	require.NoError(t, gdb.Find(&logs).Error)
	require.Len(t, logs, 5)
	for _, l := range logs {
		assert.Equal(t, types.CreditChangeReasonExpired, l.Reason)
		require.NotNil(t, l.Before.Data())
		assert.Equal(t, types.CreditStatusActive, l.Before.Data().Status)
	}

	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweep_FollowsClock(t *testing.T) {
	ctx := context.Background()
	s, store, _, clk, _ := newTestSweeper(t, 10)
	soon := testNow.Add(30 * time.Minute)
	seed(t, store, "u1", &soon)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Advance(time.Hour)
	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := store.CountActive(ctx, "u1", clk.Now())
	require.NoError(t, err)
	assert.Zero(t, active)
}

func TestWarnUpcoming(t *testing.T) {
	ctx := context.Background()
	s, store, _, _, notifier := newTestSweeper(t, 10)
	in1d := testNow.Add(24 * time.Hour)
	in2d := testNow.Add(48 * time.Hour)
	in10d := testNow.Add(240 * time.Hour)
	seed(t, store, "u1", &in2d)
	seed(t, store, "u1", &in1d)
	seed(t, store, "u2", &in10d)

	notifier.On("NotifyCreditExpiration", mock.Anything, "u1", int64(2), mock.MatchedBy(func(at time.Time) bool {
		return at.Equal(in1d)
	})).Return().Once()

	users, err := s.WarnUpcoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)
	notifier.AssertExpectations(t)
}

func TestRunSweeper_StopEndsLoop(t *testing.T) {
	s, store, gdb, _, _ := newTestSweeper(t, 10)
	s.cfg.Interval = 10 * time.Millisecond

	app := fxtest.New(t,
		fx.Supply(s),
		fx.Invoke(runSweeper),
	)
	app.RequireStart()
	time.Sleep(30 * time.Millisecond)
	app.RequireStop()

	// a loop still running would expire this within a few ticks
	past := testNow.Add(-time.Hour)
	seed(t, store, "u1", &past)
	time.Sleep(50 * time.Millisecond)

	var active int64
	require.NoError(t, gdb.Model(&models.Credit{}).Where("status = ?", types.CreditStatusActive).Count(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestRunSweeper_DisabledWithoutInterval(t *testing.T) {
	s, _, _, _, _ := newTestSweeper(t, 10)

	app := fxtest.New(t,
		fx.Supply(s),
		fx.Invoke(runSweeper),
	)
	app.RequireStart()
	app.RequireStop()
}
