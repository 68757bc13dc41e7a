package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/creditledger/internal/app/service/allocator"
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/notification"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/app/service/subscription"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/metrics"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

var (
	// ErrEventAlreadyProcessed is returned for a replay of a handled event.
	ErrEventAlreadyProcessed = errors.New("lifecycle: event already processed")
	ErrUnsupportedEvent      = errors.New("lifecycle: unsupported event")
)

// Outcome summarises what an event changed.
type Outcome struct {
	EventID      string                         `json:"event_id"`
	Type         types.PaymentEventType         `json:"type"`
	UserID       string                         `json:"user_id,omitempty"`
	Subscription *models.Subscription           `json:"subscription,omitempty"`
	Reason       types.SubscriptionChangeReason `json:"reason,omitempty"`
	Granted      int                            `json:"granted"`
	Superseded   int                            `json:"superseded"`
	Unlimited    bool                           `json:"unlimited,omitempty"`

	grant         *allocator.GrantResult
	paymentFailed bool
}

// Processor applies payment gateway events to the ledger. Each event's
// effects and its dedup record commit in one transaction.
type Processor struct {
	store         ledger.Store
	catalog       *plan.Catalog
	allocator     *allocator.Allocator
	subscriptions *subscription.Service
	notifier      notification.Notifier
	metrics       *metrics.Ledger
	clock         clock.Clock
	log           *zap.SugaredLogger
}

func NewProcessor(
	store ledger.Store,
	catalog *plan.Catalog,
	alloc *allocator.Allocator,
	subs *subscription.Service,
	notifier notification.Notifier,
	m *metrics.Ledger,
	clk clock.Clock,
	log *zap.SugaredLogger,
) *Processor {
	return &Processor{
		store:         store,
		catalog:       catalog,
		allocator:     alloc,
		subscriptions: subs,
		notifier:      notifier,
		metrics:       m,
		clock:         clk,
		log:           log,
	}
}

// Handle processes ev exactly once. A replay of an already handled event
// returns ErrEventAlreadyProcessed; a failed attempt leaves no ledger effect
// and may be retried.
func (p *Processor) Handle(ctx context.Context, ev *Event) (*Outcome, error) {
	if err := ev.normalize(); err != nil {
		return nil, err
	}
	log := logctx.FromCtx(ctx, p.log).With("event_id", ev.ID, "event_type", ev.Type, "provider", ev.Provider)
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warnw("encode payment event failed, storing empty payload", "err", err)
		data = []byte(`{}`)
	}

	var out *Outcome
	err = p.store.Transaction(ctx, func(tx ledger.Store) error {
		rec, err := p.claimEvent(ctx, tx, ev, data)
		if err != nil {
			return err
		}
		out, err = p.apply(ctx, tx, ev)
		if err != nil {
			return err
		}
		now := p.clock.Now()
		rec.Status = types.PaymentEventStatusHandled
		rec.ProcessedAt = &now
		rec.Result = p.resultJSON(ctx, out, nil)
		if out.UserID != "" {
			rec.UserID = &out.UserID
		}
		return tx.UpdatePaymentEvent(ctx, rec)
	})
	switch {
	case errors.Is(err, ErrEventAlreadyProcessed):
		p.metrics.PaymentEvent(string(ev.Type), "duplicate")
		log.Infow("payment event replay ignored")
		return nil, err
	case err != nil:
		p.metrics.PaymentEvent(string(ev.Type), "failed")
		log.Errorw("payment event failed", "err", err)
		p.recordFailure(ctx, ev, data, err)
		return nil, err
	}

	p.metrics.PaymentEvent(string(ev.Type), "handled")
	p.allocator.Committed(ctx, out.grant)
	if out.paymentFailed && p.notifier != nil && out.UserID != "" {
		p.notifier.NotifyPaymentFailed(ctx, out.UserID, ev.ExternalSubscriptionID)
	}
	log.Infow("payment event handled", "user_id", out.UserID, "granted", out.Granted, "superseded", out.Superseded)
	return out, nil
}

// claimEvent inserts the dedup row or picks up the row of an earlier failed
// attempt.
func (p *Processor) claimEvent(ctx context.Context, tx ledger.Store, ev *Event, data []byte) (*models.PaymentEvent, error) {
	rec := newEventRecord(ctx, ev, data, p.clock)
	inserted, err := tx.InsertPaymentEvent(ctx, rec)
	if err != nil {
		return nil, err
	}
	if inserted {
		return rec, nil
	}
	existing, err := tx.GetPaymentEvent(ctx, ev.Provider, ev.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("payment event %s vanished: %w", ev.ID, ledger.ErrLedgerInfrastructure)
	}
	if existing.Processed() {
		return nil, ErrEventAlreadyProcessed
	}
	existing.Data = rec.Data
	existing.TraceID = rec.TraceID
	return existing, nil
}

func (p *Processor) apply(ctx context.Context, tx ledger.Store, ev *Event) (*Outcome, error) {
	out := &Outcome{EventID: ev.ID, Type: ev.Type, UserID: ev.UserID}
	switch ev.Type {
	case types.PaymentEventCheckoutCompleted:
		// checkouts introduce users to the ledger
		if ev.UserID == "" {
			return nil, ledger.InvalidArgument("user id is required for checkout")
		}
		if _, err := tx.EnsureUser(ctx, ev.UserID, ev.OrganizationID, p.clock.Now()); err != nil {
			return nil, err
		}
		switch ev.Mode {
		case types.CheckoutModeOneTime:
			return out, p.applyPurchase(ctx, tx, ev, out)
		case types.CheckoutModeSubscription:
			return out, p.applySubscriptionCheckout(ctx, tx, ev, out)
		default:
			return nil, ledger.InvalidArgument("unknown checkout mode %q", ev.Mode)
		}
	case types.PaymentEventSubscriptionUpdated:
		return out, p.applySubscriptionUpdate(ctx, tx, ev, out)
	case types.PaymentEventSubscriptionDeleted:
		res, err := p.subscriptions.Cancel(ctx, tx, ev.ExternalSubscriptionID, ev.ID)
		if err != nil {
			return nil, err
		}
		out.UserID, out.Subscription, out.Reason = res.Subscription.UserID, res.Subscription, res.Reason
		return out, nil
	case types.PaymentEventInvoicePaymentFailed:
		if ev.ExternalSubscriptionID != "" {
			sub, err := tx.GetSubscriptionByExternalID(ctx, ev.ExternalSubscriptionID)
			switch {
			case err == nil:
				out.UserID, out.Subscription = sub.UserID, sub
			case !errors.Is(err, ledger.ErrSubscriptionNotFound):
				return nil, err
			}
		}
		out.paymentFailed = true
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.Type)
}

func (p *Processor) applyPurchase(ctx context.Context, tx ledger.Store, ev *Event, out *Outcome) error {
	chargeID := ev.ChargeID
	if chargeID == "" {
		chargeID = ev.ID
	}
	res, err := p.allocator.GrantPurchaseCreditTx(ctx, tx, allocator.PurchaseGrant{
		UserID:      ev.UserID,
		ChargeID:    chargeID,
		ValueUSD:    ev.AmountPaidUSD,
		Description: ev.Description,
	})
	if err != nil {
		return err
	}
	out.setGrant(res)
	return nil
}

func (p *Processor) applySubscriptionCheckout(ctx context.Context, tx ledger.Store, ev *Event, out *Outcome) error {
	planID, err := p.catalog.Resolve(ev.planRef())
	if err != nil {
		return err
	}
	start := timeOrZero(ev.PeriodStart)
	if start.IsZero() {
		start = timeOrZero(ev.OccurredAt)
	}
	res, err := p.subscriptions.Activate(ctx, tx, subscription.Change{
		UserID:                 ev.UserID,
		OrganizationID:         ev.OrganizationID,
		PlanID:                 planID,
		ExternalSubscriptionID: ev.ExternalSubscriptionID,
		ExternalCustomerID:     ev.ExternalCustomerID,
		PeriodStart:            start,
		PeriodEnd:              timeOrZero(ev.PeriodEnd),
		EventID:                ev.ID,
		Extra:                  ev.Extra,
	})
	if err != nil {
		return err
	}
	out.Subscription, out.Reason = res.Subscription, res.Reason
	return p.regrant(ctx, tx, ev, res.Subscription, out)
}

func (p *Processor) applySubscriptionUpdate(ctx context.Context, tx ledger.Store, ev *Event, out *Outcome) error {
	var planID types.PlanID
	if ref := ev.planRef(); ref != "" {
		id, err := p.catalog.Resolve(ref)
		if err != nil {
			return err
		}
		planID = id
	}
	res, err := p.subscriptions.Update(ctx, tx, subscription.Change{
		OrganizationID:         ev.OrganizationID,
		PlanID:                 planID,
		ExternalSubscriptionID: ev.ExternalSubscriptionID,
		ExternalCustomerID:     ev.ExternalCustomerID,
		PeriodStart:            timeOrZero(ev.PeriodStart),
		PeriodEnd:              timeOrZero(ev.PeriodEnd),
		EventID:                ev.ID,
		Extra:                  ev.Extra,
	})
	if err != nil {
		return err
	}
	out.UserID, out.Subscription, out.Reason = res.Subscription.UserID, res.Subscription, res.Reason
	if !res.Regrant {
		return nil
	}
	return p.regrant(ctx, tx, ev, res.Subscription, out)
}

func (p *Processor) regrant(ctx context.Context, tx ledger.Store, ev *Event, sub *models.Subscription, out *Outcome) error {
	res, err := p.allocator.GrantSubscriptionCreditsTx(ctx, tx, allocator.SubscriptionGrant{
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		SubscriptionID: sub.ID,
		PeriodEnd:      sub.CurrentPeriodEnd,
		EventID:        ev.ID,
	})
	if err != nil {
		return err
	}
	out.setGrant(res)
	return nil
}

func (o *Outcome) setGrant(res *allocator.GrantResult) {
	o.grant = res
	o.Granted = len(res.Credits)
	o.Superseded = res.Superseded
	o.Unlimited = res.Unlimited
}

// recordFailure stores the failed attempt outside the rolled back
// transaction. It is best effort.
func (p *Processor) recordFailure(ctx context.Context, ev *Event, data []byte, cause error) {
	ctx = context.WithoutCancel(ctx)
	log := logctx.FromCtx(ctx, p.log)
	err := p.store.Transaction(ctx, func(tx ledger.Store) error {
		rec := newEventRecord(ctx, ev, data, p.clock)
		rec.Status = types.PaymentEventStatusHandleFailed
		rec.Result = p.resultJSON(ctx, nil, cause)
		inserted, err := tx.InsertPaymentEvent(ctx, rec)
		if err != nil || inserted {
			return err
		}
		existing, err := tx.GetPaymentEvent(ctx, ev.Provider, ev.ID)
		if err != nil || existing == nil || existing.Processed() {
			return err
		}
		existing.Status = types.PaymentEventStatusHandleFailed
		existing.Result = rec.Result
		return tx.UpdatePaymentEvent(ctx, existing)
	})
	if err != nil {
		log.Warnw("failed to record payment event failure", "event_id", ev.ID, "err", err)
	}
}

func newEventRecord(ctx context.Context, ev *Event, data []byte, clk clock.Clock) *models.PaymentEvent {
	rec := &models.PaymentEvent{
		ID:         tool.GenerateUUIDV7(),
		Provider:   ev.Provider,
		EventID:    ev.ID,
		EventType:  ev.Type,
		TraceID:    logctx.TraceID(ctx),
		Data:       datatypes.JSON(data),
		Status:     types.PaymentEventStatusReceived,
		ReceivedAt: clk.Now(),
	}
	if ev.UserID != "" {
		userID := ev.UserID
		rec.UserID = &userID
	}
	return rec
}

func (p *Processor) resultJSON(ctx context.Context, out *Outcome, cause error) *datatypes.JSON {
	m := map[string]any{}
	if out != nil {
		m["outcome"] = out
	}
	if cause != nil {
		m["error"] = cause.Error()
	}
	b, err := json.Marshal(m)
	if err != nil {
		logctx.FromCtx(ctx, p.log).Warnw("encode payment event result failed", "err", err)
		b = []byte(`{}`)
	}
	j := datatypes.JSON(b)
	return &j
}
