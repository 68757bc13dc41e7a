package usage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/types"
)

// UnlimitedCredits is reported as the available balance of unlimited plans.
const UnlimitedCredits int64 = math.MaxInt64

type Breakdown struct {
	Subscription int64 `json:"subscription"`
	Purchase     int64 `json:"purchase"`
	Referral     int64 `json:"referral"`
}

type Balance struct {
	IsUnlimited      bool         `json:"is_unlimited"`
	PlanID           types.PlanID `json:"plan_id,omitempty"`
	TotalCredits     int64        `json:"total_credits"`
	AvailableCredits int64        `json:"available_credits"`
	UsedCredits      int64        `json:"used_credits"`
	Breakdown        Breakdown    `json:"breakdown"`
}

type Accountant struct {
	store   ledger.Store
	catalog *plan.Catalog
	clock   clock.Clock
	log     *zap.SugaredLogger
}

func NewAccountant(store ledger.Store, catalog *plan.Catalog, clk clock.Clock, log *zap.SugaredLogger) *Accountant {
	return &Accountant{store: store, catalog: catalog, clock: clk, log: log}
}

// ActivePlan returns the user's active subscription and its entitlement.
// Both are nil/zero when the user has no subscription or an unknown plan.
func (a *Accountant) ActivePlan(ctx context.Context, store ledger.Store, userID string) (*models.Subscription, *plan.Entitlement, error) {
	sub, err := store.GetActiveSubscription(ctx, userID)
	if err != nil || sub == nil {
		return nil, nil, err
	}
	ent, err := a.catalog.Lookup(sub.PlanID)
	if err != nil {
		logctx.FromCtx(ctx, a.log).Warnw("active subscription has unknown plan",
			"subscription_id", sub.ID, "plan_id", sub.PlanID)
		return sub, nil, nil
	}
	return sub, &ent, nil
}

// requireUserID rejects an empty identifier. Users without ledger rows are
// valid and read as the zero state.
func requireUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", ledger.ErrUserNotFound)
	}
	return nil
}

func (a *Accountant) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	sub, ent, err := a.ActivePlan(ctx, a.store, userID)
	if err != nil {
		return nil, err
	}
	bal := &Balance{}
	if sub != nil {
		bal.PlanID = sub.PlanID
	}
	if ent != nil && ent.IsUnlimited {
		bal.IsUnlimited = true
		bal.TotalCredits = UnlimitedCredits
		bal.AvailableCredits = UnlimitedCredits
		return bal, nil
	}

	aggs, err := a.store.AggregateByStatus(ctx, userID, a.clock.Now())
	if err != nil {
		return nil, err
	}
	for _, agg := range aggs {
		bal.TotalCredits += agg.Count
		switch agg.Status {
		case types.CreditStatusActive:
			bal.AvailableCredits += agg.Count
			switch agg.SourceType {
			case types.CreditSourceSubscription:
				bal.Breakdown.Subscription += agg.Count
			case types.CreditSourcePurchase:
				bal.Breakdown.Purchase += agg.Count
			case types.CreditSourceReferral:
				bal.Breakdown.Referral += agg.Count
			}
		case types.CreditStatusUsed:
			bal.UsedCredits += agg.Count
		}
	}
	return bal, nil
}

// HasCredits reports whether n credits could be spent now. n <= 0 counts as 1.
func (a *Accountant) HasCredits(ctx context.Context, userID string, n int64) (bool, error) {
	if n <= 0 {
		n = 1
	}
	if err := requireUserID(userID); err != nil {
		return false, err
	}
	_, ent, err := a.ActivePlan(ctx, a.store, userID)
	if err != nil {
		return false, err
	}
	if ent != nil && ent.IsUnlimited {
		return true, nil
	}
	active, err := a.store.CountActive(ctx, userID, a.clock.Now())
	if err != nil {
		return false, err
	}
	return active >= n, nil
}

// CurrentPeriod is the subscription's billing period when it covers now,
// otherwise the UTC calendar month of now.
func CurrentPeriod(sub *models.Subscription, now time.Time) (time.Time, time.Time) {
	if sub.CoversPeriod(now) {
		return sub.CurrentPeriodStart.UTC(), sub.CurrentPeriodEnd.UTC()
	}
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

type Consumption struct {
	UserID  string
	Feature types.FeatureType
	// Source is nil for unlimited consumption.
	Source       *types.CreditSourceType
	Subscription *models.Subscription
	Entitlement  *plan.Entitlement
}

// RecordConsumption bumps the period counter inside the consume transaction.
func (a *Accountant) RecordConsumption(ctx context.Context, tx ledger.Store, c Consumption) error {
	now := a.clock.Now()
	start, end := CurrentPeriod(c.Subscription, now)
	var limit *int
	if c.Entitlement != nil && !c.Entitlement.IsUnlimited {
		n := c.Entitlement.CreditCount
		limit = &n
	}
	return tx.IncrementUsageCounter(ctx, ledger.UsageIncrement{
		UserID:      c.UserID,
		Feature:     c.Feature,
		PeriodStart: start,
		PeriodEnd:   end,
		Source:      c.Source,
		LimitCount:  limit,
		At:          now,
	})
}

type Usage struct {
	PeriodStart time.Time                    `json:"period_start"`
	PeriodEnd   time.Time                    `json:"period_end"`
	Counters    []*models.UsagePeriodCounter `json:"counters"`
}

// GetUsage returns the per-feature counters of the current period.
func (a *Accountant) GetUsage(ctx context.Context, userID string) (*Usage, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	sub, err := a.store.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	start, end := CurrentPeriod(sub, a.clock.Now())
	counters, err := a.store.ListUsageCounters(ctx, userID, start)
	if err != nil {
		return nil, err
	}
	return &Usage{PeriodStart: start, PeriodEnd: end, Counters: counters}, nil
}
