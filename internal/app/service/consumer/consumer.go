package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/notification"
	"github.com/fatflowers/creditledger/internal/app/service/usage"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/metrics"
	"github.com/fatflowers/creditledger/pkg/types"
)

type UseResult struct {
	CreditID   string                 `json:"credit_id,omitempty"`
	SourceType types.CreditSourceType `json:"source_type,omitempty"`
	Unlimited  bool                   `json:"unlimited"`
	// Remaining is the active balance after the consumption, or
	// usage.UnlimitedCredits.
	Remaining int64 `json:"remaining"`
}

// Consumer spends credits. One call consumes exactly one credit record, or
// none for unlimited plans.
type Consumer struct {
	store      ledger.Store
	accountant *usage.Accountant
	notifier   notification.Notifier
	threshold  int64
	retries    int
	metrics    *metrics.Ledger
	clock      clock.Clock
	log        *zap.SugaredLogger
}

func NewConsumer(store ledger.Store, accountant *usage.Accountant, notifier notification.Notifier, cfg *config.Config, m *metrics.Ledger, clk clock.Clock, log *zap.SugaredLogger) *Consumer {
	retries := cfg.Ledger.ClaimRetries
	if retries < 0 {
		retries = 0
	}
	return &Consumer{
		store:      store,
		accountant: accountant,
		notifier:   notifier,
		threshold:  cfg.Ledger.LowCreditThreshold,
		retries:    retries,
		metrics:    m,
		clock:      clk,
		log:        log,
	}
}

// UseCredit consumes the highest-priority active credit of userID for one
// unit of feature. The claim, the status change and the usage counter are
// committed together; the low-credit warning is queued after commit.
func (c *Consumer) UseCredit(ctx context.Context, userID string, feature types.FeatureType, featureID string) (*UseResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ledger.ErrUserNotFound)
	}
	if !feature.Valid() {
		return nil, ledger.InvalidArgument("unknown feature %q", feature)
	}

	start := time.Now()
	var (
		res *UseResult
		err error
	)
	for attempt := 0; ; attempt++ {
		res, err = c.useOnce(ctx, userID, feature, featureID)
		if !errors.Is(err, ledger.ErrClaimConflict) || attempt >= c.retries {
			break
		}
		logctx.FromCtx(ctx, c.log).Debugw("claim conflict, retrying", "user_id", userID, "attempt", attempt+1)
	}
	c.metrics.ObserveClaim(start)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			c.metrics.InsufficientCredits()
		}
		return nil, err
	}

	if res.Unlimited {
		c.metrics.CreditConsumed("unlimited", string(feature))
		res.Remaining = usage.UnlimitedCredits
		return res, nil
	}
	c.metrics.CreditConsumed(string(res.SourceType), string(feature))
	res.Remaining = c.warnIfLow(ctx, userID)
	return res, nil
}

func (c *Consumer) useOnce(ctx context.Context, userID string, feature types.FeatureType, featureID string) (*UseResult, error) {
	var res *UseResult
	err := c.store.Transaction(ctx, func(tx ledger.Store) error {
		now := c.clock.Now()
		sub, ent, err := c.accountant.ActivePlan(ctx, tx, userID)
		if err != nil {
			return err
		}
		consumption := usage.Consumption{UserID: userID, Feature: feature, Subscription: sub, Entitlement: ent}

		if ent != nil && ent.IsUnlimited {
			res = &UseResult{Unlimited: true}
			return c.accountant.RecordConsumption(ctx, tx, consumption)
		}

		credit, err := tx.ClaimHighestPriorityActive(ctx, userID, now)
		if err != nil {
			return err
		}
		if credit == nil {
			return ledger.ErrInsufficientCredits
		}
		if !credit.Claimable(now) {
			// row changed between select and lock
			return ledger.ErrClaimConflict
		}
		if err := tx.MarkCreditUsed(ctx, credit.ID, ledger.CreditUsage{
			UsedAt:    now,
			Feature:   feature,
			FeatureID: featureID,
		}); err != nil {
			return err
		}

		source := credit.SourceType
		consumption.Source = &source
		if err := c.accountant.RecordConsumption(ctx, tx, consumption); err != nil {
			return err
		}
		res = &UseResult{CreditID: credit.ID, SourceType: source}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// warnIfLow returns the remaining balance and queues a warning when it is in
// (0, threshold]. Failures are logged and never fail the consumption.
func (c *Consumer) warnIfLow(ctx context.Context, userID string) int64 {
	remaining, err := c.store.CountActive(ctx, userID, c.clock.Now())
	if err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("low credit check failed", "user_id", userID, "err", err)
		return -1
	}
	if remaining > 0 && remaining <= c.threshold && c.notifier != nil {
		c.notifier.NotifyLowCredit(ctx, userID, remaining)
	}
	return remaining
}
