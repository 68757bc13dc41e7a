package models

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&User{},
		&ReferralStat{},
		&Subscription{},
		&SubscriptionLog{},
		&Credit{},
		&CreditLog{},
		&UsagePeriodCounter{},
		&PaymentEvent{},
	}
}
