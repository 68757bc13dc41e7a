package models

import (
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
	"gorm.io/datatypes"
)

// Subscription is a user's plan binding as reported by the payment gateway.
// Several active rows may exist for one user; the most recently created one wins.
type Subscription struct {
	ID                     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID                 string                   `gorm:"column:user_id;type:varchar(64);not null;index:idx_subscription_user_status,priority:1" json:"user_id"`
	OrganizationID         string                   `gorm:"column:organization_id;type:varchar(64)" json:"organization_id"`
	PlanID                 types.PlanID             `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Status                 types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index:idx_subscription_user_status,priority:2" json:"status"`
	ExternalSubscriptionID string                   `gorm:"column:external_subscription_id;type:varchar(128);index" json:"external_subscription_id"`
	ExternalCustomerID     string                   `gorm:"column:external_customer_id;type:varchar(128)" json:"external_customer_id"`
	CurrentPeriodStart     time.Time                `gorm:"column:current_period_start" json:"current_period_start"`
	CurrentPeriodEnd       time.Time                `gorm:"column:current_period_end" json:"current_period_end"`
	CancelledAt            *time.Time               `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`
	// Extra stores additional gateway data such as price and currency.
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

func (s *Subscription) Active() bool {
	return s != nil && s.Status == types.SubscriptionStatusActive
}

// CoversPeriod reports whether now falls inside the current billing period.
func (s *Subscription) CoversPeriod(now time.Time) bool {
	return s.Active() &&
		!s.CurrentPeriodStart.IsZero() &&
		!now.Before(s.CurrentPeriodStart) &&
		now.Before(s.CurrentPeriodEnd)
}
