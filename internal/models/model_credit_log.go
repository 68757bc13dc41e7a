package models

import (
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
	"gorm.io/datatypes"
)

// CreditLog keeps an audit trail of credit rows that were removed or
// expired in bulk, so hard deletes on plan replacement stay traceable.
type CreditLog struct {
	ID         string                   `gorm:"column:id;primary_key;type:uuid;index:idx_credit_log_user_id_id,priority:2,sort:desc"`
	UserID     string                   `gorm:"column:user_id;type:varchar(64);index:idx_credit_log_user_id_id,priority:1;not null"`
	CreditID   string                   `gorm:"column:credit_id;type:uuid;not null"`
	SourceType types.CreditSourceType   `gorm:"column:source_type;type:varchar(32);not null"`
	Reason     types.CreditChangeReason `gorm:"column:reason;type:varchar(32);not null"`
	// Before is the row as it was when the change happened.
	Before datatypes.JSONType[*Credit] `gorm:"column:before;type:jsonb;default:'null'"`
	// Extra carries the trigger, e.g. the subscription that replaced the credits.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time         `json:"created_at"`
}

func (CreditLog) TableName() string {
	return "credit_log"
}
