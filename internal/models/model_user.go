package models

import "time"

// User is the ledger's view of an account: identity, tenant and referral code.
type User struct {
	ID             string  `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Email          string  `gorm:"column:email;type:varchar(255)" json:"email"`
	OrganizationID string  `gorm:"column:organization_id;type:varchar(64);index" json:"organization_id"`
	ReferralCode   *string `gorm:"column:referral_code;type:varchar(32);uniqueIndex" json:"referral_code"`
	// ReferredBy is the referrer's user id once a code was redeemed.
	ReferredBy *string   `gorm:"column:referred_by;type:varchar(64)" json:"referred_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (User) TableName() string { return "app_user" }

// ReferralStat holds lifetime referral counters of a referrer.
type ReferralStat struct {
	UserID            string    `gorm:"column:user_id;type:varchar(64);primary_key" json:"user_id"`
	LifetimeReferrals int64     `gorm:"column:lifetime_referrals;not null;default:0" json:"lifetime_referrals"`
	LifetimeRewardUSD float64   `gorm:"column:lifetime_reward_usd;type:numeric(12,2);not null;default:0" json:"lifetime_reward_usd"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (ReferralStat) TableName() string { return "referral_stat" }
