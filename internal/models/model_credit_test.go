package models

import (
	"testing"
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCredit_Claimable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		credit *Credit
		want   bool
	}{
		{"nil", nil, false},
		{"active without expiry", &Credit{Status: types.CreditStatusActive}, true},
		{"active not yet expired", &Credit{Status: types.CreditStatusActive, ExpiresAt: &future}, true},
		{"active past expiry", &Credit{Status: types.CreditStatusActive, ExpiresAt: &past}, false},
		{"expiry equal to now", &Credit{Status: types.CreditStatusActive, ExpiresAt: &now}, false},
		{"used", &Credit{Status: types.CreditStatusUsed}, false},
		{"expired", &Credit{Status: types.CreditStatusExpired}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.credit.Claimable(now))
		})
	}
}

func TestSubscription_CoversPeriod(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := &Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
	}
	assert.True(t, sub.CoversPeriod(start))
	assert.True(t, sub.CoversPeriod(start.AddDate(0, 0, 15)))
	assert.False(t, sub.CoversPeriod(start.AddDate(0, 1, 0)))
	assert.False(t, sub.CoversPeriod(start.Add(-time.Second)))

	sub.Status = types.SubscriptionStatusCancelled
	assert.False(t, sub.CoversPeriod(start.AddDate(0, 0, 15)))
}
