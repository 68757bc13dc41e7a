package types

import "fmt"

type CreditSourceType string

const (
	CreditSourceSubscription CreditSourceType = "subscription"
	CreditSourcePurchase     CreditSourceType = "purchase"
	CreditSourceReferral     CreditSourceType = "referral"
)

// Consumption priorities, higher is spent first.
const (
	CreditPriorityPurchase     = 100
	CreditPriorityReferral     = 75
	CreditPrioritySubscription = 50
)

func (t CreditSourceType) Valid() bool {
	switch t {
	case CreditSourceSubscription, CreditSourcePurchase, CreditSourceReferral:
		return true
	}
	return false
}

// Priority is derived from the source type and never taken from callers.
func (t CreditSourceType) Priority() int {
	switch t {
	case CreditSourcePurchase:
		return CreditPriorityPurchase
	case CreditSourceReferral:
		return CreditPriorityReferral
	case CreditSourceSubscription:
		return CreditPrioritySubscription
	}
	return 0
}

// IsBonus reports whether consumption of this source counts as bonus usage.
func (t CreditSourceType) IsBonus() bool {
	return t == CreditSourcePurchase || t == CreditSourceReferral
}

type CreditStatus string

const (
	CreditStatusActive  CreditStatus = "active"
	CreditStatusUsed    CreditStatus = "used"
	CreditStatusExpired CreditStatus = "expired"
)

func (s CreditStatus) Terminal() bool {
	return s == CreditStatusUsed || s == CreditStatusExpired
}

func (s CreditStatus) CanTransitionTo(next CreditStatus) bool {
	return s == CreditStatusActive && next.Terminal()
}

var creditStatuses = []CreditStatus{CreditStatusActive, CreditStatusUsed, CreditStatusExpired}

// StatusesBefore lists the statuses a credit may move to next from. Updates
// condition on it so terminal rows never change.
func StatusesBefore(next CreditStatus) []CreditStatus {
	var out []CreditStatus
	for _, s := range creditStatuses {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

type CreditChangeReason string

const (
	CreditChangeReasonSuperseded CreditChangeReason = "superseded"
	CreditChangeReasonExpired    CreditChangeReason = "expired"
)

type FeatureType string

const (
	FeatureBlogPost        FeatureType = "blog_post"
	FeatureEmailCampaign   FeatureType = "email_campaign"
	FeatureSocialPost      FeatureType = "social_post"
	FeatureWebsiteAnalysis FeatureType = "website_analysis"
)

func (f FeatureType) Valid() bool {
	switch f {
	case FeatureBlogPost, FeatureEmailCampaign, FeatureSocialPost, FeatureWebsiteAnalysis:
		return true
	}
	return false
}

func ParseFeatureType(s string) (FeatureType, error) {
	f := FeatureType(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown feature type %q", s)
	}
	return f, nil
}
