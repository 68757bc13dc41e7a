package models

import (
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
	"gorm.io/datatypes"
)

// SubscriptionLog records changes to user subscriptions for troubleshooting.
type SubscriptionLog struct {
	ID             string                         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID         string                         `gorm:"column:user_id;type:varchar(64);index:idx_subscription_log_user_id,priority:1;not null"`
	SubscriptionID string                         `gorm:"column:subscription_id;type:uuid;not null"`
	Reason         types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// EventID is the payment event that caused the change, if any.
	EventID   string                            `gorm:"column:event_id;type:varchar(128)"`
	Before    datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'"`
	After     datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'"`
	Extra     datatypes.JSONMap                 `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
