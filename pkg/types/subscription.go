package types

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonPurchase   SubscriptionChangeReason = "purchase"
	SubscriptionChangeReasonPlanChange SubscriptionChangeReason = "plan_change"
	SubscriptionChangeReasonRenewal    SubscriptionChangeReason = "renewal"
	SubscriptionChangeReasonCancel     SubscriptionChangeReason = "cancel"
	// SubscriptionChangeReasonUpdate covers gateway changes that keep the
	// plan and the period start, such as a moved period end.
	SubscriptionChangeReasonUpdate SubscriptionChangeReason = "update"
)
