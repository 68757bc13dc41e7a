package models

import (
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
)

// UsagePeriodCounter tallies consumption per user, feature and billing period.
type UsagePeriodCounter struct {
	ID          string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID      string            `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:ux_usage_user_feature_period,priority:1" json:"user_id"`
	FeatureType types.FeatureType `gorm:"column:feature_type;type:varchar(64);not null;uniqueIndex:ux_usage_user_feature_period,priority:2" json:"feature_type"`
	PeriodStart time.Time         `gorm:"column:period_start;not null;uniqueIndex:ux_usage_user_feature_period,priority:3" json:"period_start"`
	PeriodEnd   time.Time         `gorm:"column:period_end;not null" json:"period_end"`
	// UsageCount counts subscription (or unlimited) consumption.
	UsageCount int64 `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	// BonusUsageCount counts purchase and referral consumption.
	BonusUsageCount int64                   `gorm:"column:bonus_usage_count;not null;default:0" json:"bonus_usage_count"`
	BonusSource     *types.CreditSourceType `gorm:"column:bonus_source;type:varchar(32)" json:"bonus_source"`
	// LimitCount is the plan allowance for the period, nil when unknown or unlimited.
	LimitCount *int      `gorm:"column:limit_count" json:"limit_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (UsagePeriodCounter) TableName() string {
	return "usage_period_counter"
}
