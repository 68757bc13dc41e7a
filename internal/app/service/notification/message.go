package notification

import (
	"context"
	"fmt"
	"time"
)

type Kind string

const (
	KindLowCredit        Kind = "low_credit"
	KindCreditExpiration Kind = "credit_expiration"
	KindPaymentFailed    Kind = "payment_failed"
)

// Message is one user-facing notification. DedupKey identifies messages that
// must not be delivered twice within the throttle window; empty disables it.
type Message struct {
	Kind     Kind           `json:"kind"`
	UserID   string         `json:"user_id"`
	Data     map[string]any `json:"data"`
	DedupKey string         `json:"dedup_key"`
	Attempts int            `json:"attempts"`
}

// Notifier queues notifications without blocking the caller. Delivery
// failures never surface to the ledger operation that triggered them.
type Notifier interface {
	NotifyLowCredit(ctx context.Context, userID string, remaining int64)
	NotifyCreditExpiration(ctx context.Context, userID string, count int64, expiresAt time.Time)
	NotifyPaymentFailed(ctx context.Context, userID, subscriptionID string)
}

func lowCreditMessage(userID string, remaining int64) *Message {
	return &Message{
		Kind:     KindLowCredit,
		UserID:   userID,
		Data:     map[string]any{"remaining": remaining},
		DedupKey: fmt.Sprintf("%s:%s:%d", KindLowCredit, userID, remaining),
	}
}

func expirationMessage(userID string, count int64, expiresAt time.Time) *Message {
	return &Message{
		Kind:   KindCreditExpiration,
		UserID: userID,
		Data: map[string]any{
			"count":      count,
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		},
		DedupKey: fmt.Sprintf("%s:%s:%s", KindCreditExpiration, userID, expiresAt.UTC().Format("2006-01-02")),
	}
}

func paymentFailedMessage(userID, subscriptionID string) *Message {
	return &Message{
		Kind:     KindPaymentFailed,
		UserID:   userID,
		Data:     map[string]any{"subscription_id": subscriptionID},
		DedupKey: fmt.Sprintf("%s:%s:%s", KindPaymentFailed, userID, subscriptionID),
	}
}
