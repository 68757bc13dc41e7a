package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Service keeps SubscriptionRecords in step with gateway events. Every
// method runs inside the caller's transaction and writes a subscription_log
// row for each change.
type Service struct {
	catalog *plan.Catalog
	clock   clock.Clock
	log     *zap.SugaredLogger
}

func NewService(catalog *plan.Catalog, clk clock.Clock, log *zap.SugaredLogger) *Service {
	return &Service{catalog: catalog, clock: clk, log: log}
}

// Change carries the gateway view of a subscription. Zero fields keep the
// stored value on updates.
type Change struct {
	UserID                 string
	OrganizationID         string
	PlanID                 types.PlanID
	ExternalSubscriptionID string
	ExternalCustomerID     string
	PeriodStart            time.Time
	PeriodEnd              time.Time
	EventID                string
	Extra                  map[string]any
}

type Result struct {
	Subscription *models.Subscription
	// Before is nil when the record was created.
	Before *models.Subscription
	Reason types.SubscriptionChangeReason
	// Changed is false when the event left the record untouched.
	Changed bool
	// Regrant is set when the period's credits must be (re)allocated.
	Regrant bool
}

// Activate records a subscription checkout. An existing active record of the
// user is updated in place, otherwise a new one is created.
func (s *Service) Activate(ctx context.Context, tx ledger.Store, ch Change) (*Result, error) {
	if ch.UserID == "" {
		return nil, ledger.InvalidArgument("user id is required")
	}
	if _, err := s.catalog.Lookup(ch.PlanID); err != nil {
		return nil, err
	}
	if ch.PeriodEnd.IsZero() {
		return nil, ledger.InvalidArgument("period end is required")
	}
	if ch.PeriodStart.IsZero() {
		ch.PeriodStart = s.clock.Now()
	}
	if !ch.PeriodEnd.After(ch.PeriodStart) {
		return nil, ledger.InvalidArgument("period end must be after period start")
	}
	if _, err := tx.EnsureUser(ctx, ch.UserID, ch.OrganizationID, s.clock.Now()); err != nil {
		return nil, err
	}

	current, err := tx.GetActiveSubscription(ctx, ch.UserID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		sub := &models.Subscription{
			ID:     tool.GenerateUUIDV7(),
			UserID: ch.UserID,
			Status: types.SubscriptionStatusActive,
		}
		apply(sub, ch)
		if err := s.save(ctx, tx, nil, sub, types.SubscriptionChangeReasonPurchase, ch.EventID); err != nil {
			return nil, err
		}
		return &Result{Subscription: sub, Reason: types.SubscriptionChangeReasonPurchase, Changed: true, Regrant: true}, nil
	}

	before := *current
	apply(current, ch)
	reason := changeReason(&before, current)
	if reason == "" {
		reason = types.SubscriptionChangeReasonPurchase
	}
	if err := s.save(ctx, tx, &before, current, reason, ch.EventID); err != nil {
		return nil, err
	}
	// a new checkout always replaces the period's allotment
	return &Result{Subscription: current, Before: &before, Reason: reason, Changed: true, Regrant: true}, nil
}

// Update applies a subscription_updated event. Credits are re-granted only
// when the plan or the period start changed.
func (s *Service) Update(ctx context.Context, tx ledger.Store, ch Change) (*Result, error) {
	if ch.ExternalSubscriptionID == "" {
		return nil, ledger.InvalidArgument("external subscription id is required")
	}
	if ch.PlanID != "" {
		if _, err := s.catalog.Lookup(ch.PlanID); err != nil {
			return nil, err
		}
	}
	sub, err := tx.GetSubscriptionByExternalID(ctx, ch.ExternalSubscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.Active() {
		return nil, fmt.Errorf("%w: %s is %s", ledger.ErrSubscriptionNotFound, ch.ExternalSubscriptionID, sub.Status)
	}

	before := *sub
	ch.UserID = ""
	apply(sub, ch)
	if !sub.CurrentPeriodEnd.After(sub.CurrentPeriodStart) {
		return nil, ledger.InvalidArgument("period end must be after period start")
	}
	reason := changeReason(&before, sub)
	if reason == "" && !metadataChanged(&before, sub) {
		return &Result{Subscription: sub, Before: &before}, nil
	}
	logReason := reason
	if logReason == "" {
		logReason = types.SubscriptionChangeReasonUpdate
	}
	if err := s.save(ctx, tx, &before, sub, logReason, ch.EventID); err != nil {
		return nil, err
	}
	return &Result{Subscription: sub, Before: &before, Reason: logReason, Changed: true, Regrant: reason != ""}, nil
}

// Cancel marks the subscription cancelled. Credits already granted stay
// spendable until they expire. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, tx ledger.Store, externalID, eventID string) (*Result, error) {
	if externalID == "" {
		return nil, ledger.InvalidArgument("external subscription id is required")
	}
	sub, err := tx.GetSubscriptionByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if !sub.Active() {
		return &Result{Subscription: sub, Reason: types.SubscriptionChangeReasonCancel}, nil
	}
	before := *sub
	now := s.clock.Now()
	sub.Status = types.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	if err := s.save(ctx, tx, &before, sub, types.SubscriptionChangeReasonCancel, eventID); err != nil {
		return nil, err
	}
	return &Result{Subscription: sub, Before: &before, Reason: types.SubscriptionChangeReasonCancel, Changed: true}, nil
}

// changeReason returns "" when neither the plan nor the period start moved.
func changeReason(before, after *models.Subscription) types.SubscriptionChangeReason {
	switch {
	case before == nil:
		return types.SubscriptionChangeReasonPurchase
	case before.PlanID != after.PlanID:
		return types.SubscriptionChangeReasonPlanChange
	case !before.CurrentPeriodStart.Equal(after.CurrentPeriodStart):
		return types.SubscriptionChangeReasonRenewal
	}
	return ""
}

func metadataChanged(before, after *models.Subscription) bool {
	return !before.CurrentPeriodEnd.Equal(after.CurrentPeriodEnd) ||
		before.ExternalCustomerID != after.ExternalCustomerID ||
		before.OrganizationID != after.OrganizationID
}

func apply(sub *models.Subscription, ch Change) {
	if ch.OrganizationID != "" {
		sub.OrganizationID = ch.OrganizationID
	}
	if ch.PlanID != "" {
		sub.PlanID = ch.PlanID
	}
	if ch.ExternalSubscriptionID != "" {
		sub.ExternalSubscriptionID = ch.ExternalSubscriptionID
	}
	if ch.ExternalCustomerID != "" {
		sub.ExternalCustomerID = ch.ExternalCustomerID
	}
	if !ch.PeriodStart.IsZero() {
		sub.CurrentPeriodStart = ch.PeriodStart.UTC()
	}
	if !ch.PeriodEnd.IsZero() {
		sub.CurrentPeriodEnd = ch.PeriodEnd.UTC()
	}
	if len(ch.Extra) > 0 {
		if b, err := json.Marshal(ch.Extra); err == nil {
			sub.Extra = datatypes.JSON(b)
		}
	}
}

func (s *Service) save(ctx context.Context, tx ledger.Store, before, after *models.Subscription, reason types.SubscriptionChangeReason, eventID string) error {
	if err := tx.SaveSubscription(ctx, after); err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription changed",
		"user_id", after.UserID,
		"subscription_id", after.ID,
		"plan_id", after.PlanID,
		"status", after.Status,
		"reason", reason,
	)
	return tx.InsertSubscriptionLog(ctx, &models.SubscriptionLog{
		ID:             tool.GenerateUUIDV7(),
		UserID:         after.UserID,
		SubscriptionID: after.ID,
		Reason:         reason,
		EventID:        eventID,
		Before:         datatypes.NewJSONType(before),
		After:          datatypes.NewJSONType(after),
		Extra:          datatypes.JSONMap{},
	})
}
