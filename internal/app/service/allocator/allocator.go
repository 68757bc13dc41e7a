package allocator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/metrics"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

// ReferralLedger keeps lifetime referral counters. Failures there never undo
// granted credits.
type ReferralLedger interface {
	RecordReward(ctx context.Context, referrerUserID string, rewardUSD float64) error
}

type Allocator struct {
	store     ledger.Store
	catalog   *plan.Catalog
	referrals ReferralLedger
	metrics   *metrics.Ledger
	clock     clock.Clock
	log       *zap.SugaredLogger
}

func NewAllocator(store ledger.Store, catalog *plan.Catalog, referrals ReferralLedger, m *metrics.Ledger, clk clock.Clock, log *zap.SugaredLogger) *Allocator {
	return &Allocator{store: store, catalog: catalog, referrals: referrals, metrics: m, clock: clk, log: log}
}

type SubscriptionGrant struct {
	UserID         string
	PlanID         types.PlanID
	SubscriptionID string
	PeriodEnd      time.Time
	// EventID is the payment event behind the grant, kept in the audit trail.
	EventID string
}

type PurchaseGrant struct {
	UserID      string
	ChargeID    string
	ValueUSD    float64
	Description string
}

type ReferralGrant struct {
	ReferrerUserID string
	ReferredUserID string
	RewardValueUSD float64
}

type GrantResult struct {
	Source     types.CreditSourceType
	Credits    []*models.Credit
	Superseded int
	// Unlimited is set when the plan grants no records. Superseded credits
	// are still removed.
	Unlimited bool
	referral  *ReferralGrant
}

// GrantSubscriptionCredits replaces the user's active subscription credits
// with the plan's allotment for the period ending at PeriodEnd.
func (a *Allocator) GrantSubscriptionCredits(ctx context.Context, req SubscriptionGrant) (*GrantResult, error) {
	var res *GrantResult
	err := a.store.Transaction(ctx, func(tx ledger.Store) error {
		var err error
		res, err = a.GrantSubscriptionCreditsTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.Committed(ctx, res)
	return res, nil
}

// GrantSubscriptionCreditsTx is GrantSubscriptionCredits inside the caller's
// transaction. The caller invokes Committed after commit.
func (a *Allocator) GrantSubscriptionCreditsTx(ctx context.Context, tx ledger.Store, req SubscriptionGrant) (*GrantResult, error) {
	if req.UserID == "" || req.SubscriptionID == "" {
		return nil, ledger.InvalidArgument("user id and subscription id are required")
	}
	if req.PeriodEnd.IsZero() {
		return nil, ledger.InvalidArgument("period end is required")
	}
	ent, err := a.catalog.Lookup(req.PlanID)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	if _, err := tx.EnsureUser(ctx, req.UserID, "", now); err != nil {
		return nil, err
	}
	res := &GrantResult{Source: types.CreditSourceSubscription, Unlimited: ent.IsUnlimited}

	// unlimited plans still supersede the previous allotment
	deleted, err := tx.DeleteActiveBySource(ctx, req.UserID, types.CreditSourceSubscription)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		logs := make([]*models.CreditLog, 0, len(deleted))
		for _, c := range deleted {
			logs = append(logs, &models.CreditLog{
				ID:         tool.GenerateUUIDV7(),
				UserID:     c.UserID,
				CreditID:   c.ID,
				SourceType: c.SourceType,
				Reason:     types.CreditChangeReasonSuperseded,
				Before:     datatypes.NewJSONType(c),
				Extra: datatypes.JSONMap{
					"subscription_id": req.SubscriptionID,
					"plan_id":         string(req.PlanID),
					"event_id":        req.EventID,
				},
				CreatedAt: now,
			})
		}
		if err := tx.InsertCreditLogs(ctx, logs); err != nil {
			return nil, err
		}
	}
	res.Superseded = len(deleted)
	if ent.IsUnlimited {
		return res, nil
	}

	expiresAt := req.PeriodEnd.UTC()
	subID := req.SubscriptionID
	credits := make([]*models.Credit, 0, ent.CreditCount)
	for i := 0; i < ent.CreditCount; i++ {
		credits = append(credits, &models.Credit{
			ID:          tool.GenerateUUIDV7(),
			UserID:      req.UserID,
			SourceType:  types.CreditSourceSubscription,
			SourceID:    &subID,
			Description: fmt.Sprintf("%s plan credit", ent.PlanID),
			ValueUSD:    ent.PerCreditValueUSD,
			Status:      types.CreditStatusActive,
			Priority:    types.CreditSourceSubscription.Priority(),
			ExpiresAt:   &expiresAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if err := tx.BulkInsertCredits(ctx, credits); err != nil {
		return nil, err
	}
	res.Credits = credits
	return res, nil
}

// GrantPurchaseCredit adds one non-expiring purchase credit.
func (a *Allocator) GrantPurchaseCredit(ctx context.Context, req PurchaseGrant) (*GrantResult, error) {
	var res *GrantResult
	err := a.store.Transaction(ctx, func(tx ledger.Store) error {
		var err error
		res, err = a.GrantPurchaseCreditTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.Committed(ctx, res)
	return res, nil
}

func (a *Allocator) GrantPurchaseCreditTx(ctx context.Context, tx ledger.Store, req PurchaseGrant) (*GrantResult, error) {
	if req.UserID == "" {
		return nil, ledger.InvalidArgument("user id is required")
	}
	if req.ValueUSD < 0 {
		return nil, ledger.InvalidArgument("value must not be negative")
	}
	now := a.clock.Now()
	if _, err := tx.EnsureUser(ctx, req.UserID, "", now); err != nil {
		return nil, err
	}
	desc := req.Description
	if desc == "" {
		desc = "Purchased credit"
	}
	credit := &models.Credit{
		ID:          tool.GenerateUUIDV7(),
		UserID:      req.UserID,
		SourceType:  types.CreditSourcePurchase,
		Description: desc,
		ValueUSD:    req.ValueUSD,
		Status:      types.CreditStatusActive,
		Priority:    types.CreditSourcePurchase.Priority(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.ChargeID != "" {
		chargeID := req.ChargeID
		credit.SourceID = &chargeID
	}
	if err := tx.InsertCredit(ctx, credit); err != nil {
		return nil, err
	}
	return &GrantResult{Source: types.CreditSourcePurchase, Credits: []*models.Credit{credit}}, nil
}

// GrantReferralCredits gives one referral credit to each side of a referral.
func (a *Allocator) GrantReferralCredits(ctx context.Context, req ReferralGrant) (*GrantResult, error) {
	var res *GrantResult
	err := a.store.Transaction(ctx, func(tx ledger.Store) error {
		var err error
		res, err = a.GrantReferralCreditsTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.Committed(ctx, res)
	return res, nil
}

func (a *Allocator) GrantReferralCreditsTx(ctx context.Context, tx ledger.Store, req ReferralGrant) (*GrantResult, error) {
	if req.ReferrerUserID == "" || req.ReferredUserID == "" {
		return nil, ledger.InvalidArgument("referrer and referred user ids are required")
	}
	if req.ReferrerUserID == req.ReferredUserID {
		return nil, ledger.InvalidArgument("a user cannot refer themselves")
	}
	if req.RewardValueUSD < 0 {
		return nil, ledger.InvalidArgument("reward must not be negative")
	}
	now := a.clock.Now()
	for _, id := range []string{req.ReferrerUserID, req.ReferredUserID} {
		if _, err := tx.EnsureUser(ctx, id, "", now); err != nil {
			return nil, err
		}
	}

	newCredit := func(userID, counterpart, desc string) *models.Credit {
		return &models.Credit{
			ID:          tool.GenerateUUIDV7(),
			UserID:      userID,
			SourceType:  types.CreditSourceReferral,
			SourceID:    &counterpart,
			Description: desc,
			ValueUSD:    req.RewardValueUSD,
			Status:      types.CreditStatusActive,
			Priority:    types.CreditSourceReferral.Priority(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	credits := []*models.Credit{
		newCredit(req.ReferrerUserID, req.ReferredUserID, "Referral reward"),
		newCredit(req.ReferredUserID, req.ReferrerUserID, "Referral welcome credit"),
	}
	if err := tx.BulkInsertCredits(ctx, credits); err != nil {
		return nil, err
	}
	referral := req
	return &GrantResult{Source: types.CreditSourceReferral, Credits: credits, referral: &referral}, nil
}

// Committed runs the post-commit effects of a grant: metrics and, for
// referrals, the referrer's lifetime counters.
func (a *Allocator) Committed(ctx context.Context, res *GrantResult) {
	if res == nil {
		return
	}
	a.metrics.CreditsGranted(string(res.Source), len(res.Credits))
	a.metrics.CreditsSuperseded(res.Superseded)
	if res.referral == nil || a.referrals == nil {
		return
	}
	if err := a.referrals.RecordReward(ctx, res.referral.ReferrerUserID, res.referral.RewardValueUSD); err != nil {
		logctx.FromCtx(ctx, a.log).Warnw("record referral reward failed",
			"referrer_user_id", res.referral.ReferrerUserID, "err", err)
	}
}
