package models

import (
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
)

// Credit is one unit of entitlement. Grants of N units are N rows.
type Credit struct {
	ID         string                 `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID     string                 `gorm:"column:user_id;type:varchar(64);not null;index:idx_credit_user_status_priority,priority:1" json:"user_id"`
	SourceType types.CreditSourceType `gorm:"column:source_type;type:varchar(32);not null" json:"source_type"`
	// SourceID is the subscription id, charge id or referred user id behind the grant.
	SourceID    *string            `gorm:"column:source_id;type:varchar(128)" json:"source_id"`
	Description string             `gorm:"column:description;type:varchar(255)" json:"description"`
	ValueUSD    float64            `gorm:"column:value_usd;type:numeric(10,2);not null;default:0" json:"value_usd"`
	Status      types.CreditStatus `gorm:"column:status;type:varchar(32);not null;index:idx_credit_user_status_priority,priority:2" json:"status"`
	Priority    int                `gorm:"column:priority;not null;index:idx_credit_user_status_priority,priority:3" json:"priority"`
	// ExpiresAt is nil for credits that never expire.
	ExpiresAt      *time.Time         `gorm:"column:expires_at;index" json:"expires_at"`
	UsedAt         *time.Time         `gorm:"column:used_at" json:"used_at"`
	UsedForFeature *types.FeatureType `gorm:"column:used_for_feature;type:varchar(64)" json:"used_for_feature"`
	UsedForID      *string            `gorm:"column:used_for_id;type:varchar(128)" json:"used_for_id"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (Credit) TableName() string {
	return "credit"
}

// Claimable reports whether the credit can still be consumed at now.
func (c *Credit) Claimable(now time.Time) bool {
	return c != nil &&
		c.Status == types.CreditStatusActive &&
		(c.ExpiresAt == nil || c.ExpiresAt.After(now))
}
