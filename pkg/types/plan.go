package types

import "fmt"

type PlanID string

const (
	PlanStarter      PlanID = "starter"
	PlanProfessional PlanID = "professional"
	PlanBusiness     PlanID = "business"
	PlanUnlimited    PlanID = "unlimited"
)

var PlanIDs = []PlanID{PlanStarter, PlanProfessional, PlanBusiness, PlanUnlimited}

func ParsePlanID(s string) (PlanID, error) {
	for _, id := range PlanIDs {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown plan %q", s)
}

// Plan is the entitlement rule of a subscription plan.
type Plan struct {
	ID          PlanID `json:"id" mapstructure:"id"`
	DisplayName string `json:"display_name" mapstructure:"display_name"`
	// ProviderPriceIDs are the payment gateway price identifiers that map to this plan.
	ProviderPriceIDs  []string `json:"provider_price_ids" mapstructure:"provider_price_ids"`
	IsUnlimited       bool     `json:"is_unlimited" mapstructure:"is_unlimited"`
	CreditCount       int      `json:"credit_count" mapstructure:"credit_count"`
	PerCreditValueUSD float64  `json:"per_credit_value_usd" mapstructure:"per_credit_value_usd"`
}

func (p *Plan) Validate() error {
	if _, err := ParsePlanID(string(p.ID)); err != nil {
		return err
	}
	if p.IsUnlimited {
		return nil
	}
	if p.CreditCount <= 0 {
		return fmt.Errorf("plan %s: credit_count must be positive", p.ID)
	}
	if p.PerCreditValueUSD < 0 {
		return fmt.Errorf("plan %s: per_credit_value_usd must not be negative", p.ID)
	}
	return nil
}
