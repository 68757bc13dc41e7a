package usage

import (
	"context"
	"sort"
	"time"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/types"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

type HistoryKind string

const (
	HistoryKindGranted HistoryKind = "granted"
	HistoryKindUsed    HistoryKind = "used"
	HistoryKindExpired HistoryKind = "expired"
)

type HistoryEvent struct {
	At          time.Time              `json:"at"`
	Kind        HistoryKind            `json:"kind"`
	CreditID    string                 `json:"credit_id"`
	SourceType  types.CreditSourceType `json:"source_type"`
	Description string                 `json:"description"`
	ValueUSD    float64                `json:"value_usd"`
	Feature     *types.FeatureType     `json:"feature,omitempty"`
	FeatureID   *string                `json:"feature_id,omitempty"`
}

// GetBillingHistory returns the newest ledger events of a user, newest first.
func (a *Accountant) GetBillingHistory(ctx context.Context, userID string, limit int) ([]HistoryEvent, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	// A credit's latest event happens at its updated_at, so the newest
	// `limit` credits hold the newest `limit` events.
	credits, err := a.store.ListCredits(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	events := make([]HistoryEvent, 0, len(credits)*2)
	for _, c := range credits {
		events = append(events, historyEvents(c)...)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.After(events[j].At)
		}
		return events[i].Kind != HistoryKindGranted && events[j].Kind == HistoryKindGranted
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func historyEvents(c *models.Credit) []HistoryEvent {
	base := HistoryEvent{
		CreditID:    c.ID,
		SourceType:  c.SourceType,
		Description: c.Description,
		ValueUSD:    c.ValueUSD,
	}
	granted := base
	granted.At, granted.Kind = c.CreatedAt, HistoryKindGranted
	out := []HistoryEvent{granted}

	switch c.Status {
	case types.CreditStatusUsed:
		used := base
		used.Kind = HistoryKindUsed
		used.At = c.UpdatedAt
		if c.UsedAt != nil {
			used.At = *c.UsedAt
		}
		used.Feature, used.FeatureID = c.UsedForFeature, c.UsedForID
		out = append(out, used)
	case types.CreditStatusExpired:
		expired := base
		expired.At, expired.Kind = c.UpdatedAt, HistoryKindExpired
		out = append(out, expired)
	}
	return out
}
