package lifecycle

import (
	"strings"
	"time"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Event is a payment gateway notification. Delivery is at least once; ID is
// the gateway's event id and identifies replays.
type Event struct {
	ID                     string                 `json:"id" binding:"required"`
	Provider               types.PaymentProvider  `json:"provider"`
	Type                   types.PaymentEventType `json:"type" binding:"required"`
	Mode                   types.CheckoutMode     `json:"mode,omitempty"`
	UserID                 string                 `json:"user_id,omitempty"`
	OrganizationID         string                 `json:"organization_id,omitempty"`
	PlanID                 string                 `json:"plan_id,omitempty"`
	PriceID                string                 `json:"price_id,omitempty"`
	ExternalSubscriptionID string                 `json:"external_subscription_id,omitempty"`
	ExternalCustomerID     string                 `json:"external_customer_id,omitempty"`
	ChargeID               string                 `json:"charge_id,omitempty"`
	AmountPaidUSD          float64                `json:"amount_paid_usd,omitempty"`
	Description            string                 `json:"description,omitempty"`
	PeriodStart            *time.Time             `json:"period_start,omitempty"`
	PeriodEnd              *time.Time             `json:"period_end,omitempty"`
	OccurredAt             *time.Time             `json:"occurred_at,omitempty"`
	Extra                  map[string]any         `json:"extra,omitempty"`
}

func (e *Event) normalize() error {
	if e == nil {
		return ledger.InvalidArgument("nil event")
	}
	e.ID = strings.TrimSpace(e.ID)
	e.UserID = strings.TrimSpace(e.UserID)
	if e.ID == "" {
		return ledger.InvalidArgument("event id is required")
	}
	if e.Provider == "" {
		e.Provider = types.PaymentProviderStripe
	}
	if _, err := types.ParsePaymentEventType(string(e.Type)); err != nil {
		return ledger.InvalidArgument("%s", err.Error())
	}
	return nil
}

// planRef is the plan id when given, otherwise the gateway price id.
func (e *Event) planRef() string {
	if e.PlanID != "" {
		return e.PlanID
	}
	return e.PriceID
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
