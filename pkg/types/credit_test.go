package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusesBefore(t *testing.T) {
	assert.Equal(t, []CreditStatus{CreditStatusActive}, StatusesBefore(CreditStatusUsed))
	assert.Equal(t, []CreditStatus{CreditStatusActive}, StatusesBefore(CreditStatusExpired))
	assert.Empty(t, StatusesBefore(CreditStatusActive))
}

func TestCreditStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, CreditStatusActive.CanTransitionTo(CreditStatusUsed))
	assert.False(t, CreditStatusUsed.CanTransitionTo(CreditStatusExpired))
	assert.False(t, CreditStatusExpired.CanTransitionTo(CreditStatusUsed))
	assert.False(t, CreditStatusActive.CanTransitionTo(CreditStatusActive))
}

func TestParseFeatureType(t *testing.T) {
	f, err := ParseFeatureType("social_post")
	assert.NoError(t, err)
	assert.Equal(t, FeatureSocialPost, f)

	_, err = ParseFeatureType("podcast")
	assert.Error(t, err)
}
