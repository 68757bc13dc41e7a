package ledger

import (
	"context"
	"time"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Store is the transactional persistence of the credit ledger. Methods called
// on the Store handed to a Transaction callback run inside that transaction.
type Store interface {
	// Transaction runs fn atomically. Errors returned by fn are passed
	// through unchanged; calls on an already transactional Store join it.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	InsertCredit(ctx context.Context, credit *models.Credit) error
	BulkInsertCredits(ctx context.Context, credits []*models.Credit) error
	// DeleteActiveBySource hard-deletes active credits of one source type and
	// returns the deleted rows.
	DeleteActiveBySource(ctx context.Context, userID string, source types.CreditSourceType) ([]*models.Credit, error)
	// ClaimHighestPriorityActive locks and returns the next credit to spend,
	// or nil when none is active and unexpired at now.
	ClaimHighestPriorityActive(ctx context.Context, userID string, now time.Time) (*models.Credit, error)
	// MarkCreditUsed moves an active credit to used. ErrClaimConflict when the
	// row is no longer active.
	MarkCreditUsed(ctx context.Context, creditID string, usage CreditUsage) error
	AggregateByStatus(ctx context.Context, userID string, now time.Time) ([]StatusAggregate, error)
	CountActive(ctx context.Context, userID string, now time.Time) (int64, error)
	ListCredits(ctx context.Context, userID string, limit int) ([]*models.Credit, error)
	ScanCredits(ctx context.Context, req *ScanCreditsRequest) ([]*models.Credit, int64, error)
	// ExpireActive moves up to limit active credits with expires_at <= now to
	// expired and returns them.
	ExpireActive(ctx context.Context, now time.Time, limit int) ([]*models.Credit, error)
	ListExpiring(ctx context.Context, from, to time.Time) ([]ExpiringCredits, error)
	InsertCreditLogs(ctx context.Context, logs []*models.CreditLog) error

	IncrementUsageCounter(ctx context.Context, inc UsageIncrement) error
	ListUsageCounters(ctx context.Context, userID string, periodStart time.Time) ([]*models.UsagePeriodCounter, error)

	// GetActiveSubscription returns the most recently created active
	// subscription of the user, or nil.
	GetActiveSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	InsertSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) error

	// InsertPaymentEvent records ev unless (provider, event_id) exists.
	// It reports whether a new row was written.
	InsertPaymentEvent(ctx context.Context, ev *models.PaymentEvent) (bool, error)
	GetPaymentEvent(ctx context.Context, provider types.PaymentProvider, eventID string) (*models.PaymentEvent, error)
	UpdatePaymentEvent(ctx context.Context, ev *models.PaymentEvent) error

	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	// EnsureUser provisions userID on first sight and fills an empty
	// organization. It reports whether the row was created.
	EnsureUser(ctx context.Context, userID, organizationID string, at time.Time) (bool, error)
	// SetReferredBy records the referrer of userID unless one is already set.
	// It reports whether the row changed.
	SetReferredBy(ctx context.Context, userID, referrerID string, at time.Time) (bool, error)
	IncrementReferralStats(ctx context.Context, userID string, rewardUSD float64, at time.Time) error
	GetReferralStat(ctx context.Context, userID string) (*models.ReferralStat, error)
}

type CreditUsage struct {
	UsedAt    time.Time
	Feature   types.FeatureType
	FeatureID string
}

type StatusAggregate struct {
	SourceType types.CreditSourceType `gorm:"column:source_type"`
	Status     types.CreditStatus     `gorm:"column:status"`
	Count      int64                  `gorm:"column:count"`
}

type ExpiringCredits struct {
	UserID          string    `gorm:"column:user_id"`
	Count           int64     `gorm:"column:count"`
	EarliestExpires time.Time `gorm:"column:earliest_expires"`
}

type UsageIncrement struct {
	UserID      string
	Feature     types.FeatureType
	PeriodStart time.Time
	PeriodEnd   time.Time
	// Source nil means unlimited consumption, counted as regular usage.
	Source     *types.CreditSourceType
	LimitCount *int
	At         time.Time
}

type ScanCreditsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}
