package models

import (
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
	"gorm.io/datatypes"
)

// PaymentEvent is the processed-event table for payment webhooks. The
// (provider, event_id) pair is unique so a replayed event is detected.
type PaymentEvent struct {
	ID         string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider   types.PaymentProvider    `gorm:"column:provider;type:varchar(64);not null;uniqueIndex:ux_payment_event_provider_event,priority:1" json:"provider"`
	EventID    string                   `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex:ux_payment_event_provider_event,priority:2" json:"event_id"`
	EventType  types.PaymentEventType   `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	UserID     *string                  `gorm:"column:user_id;type:varchar(64)" json:"user_id"`
	TraceID    string                   `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Data       datatypes.JSON           `gorm:"column:data;type:jsonb" json:"data"`
	Result     *datatypes.JSON          `gorm:"column:result;type:jsonb" json:"result"`
	Status     types.PaymentEventStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ReceivedAt time.Time                `gorm:"column:received_at" json:"received_at"`
	// ProcessedAt is set once the event's ledger effects are committed.
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (PaymentEvent) TableName() string { return "payment_event" }

func (e *PaymentEvent) Processed() bool {
	return e != nil && e.ProcessedAt != nil
}
