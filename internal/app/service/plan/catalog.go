package plan

import (
	"errors"
	"fmt"

	"go.uber.org/fx"

	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/types"
)

var ErrPlanNotFound = errors.New("plan: not found")

// Entitlement is what a plan grants per billing period.
type Entitlement struct {
	PlanID            types.PlanID
	IsUnlimited       bool
	CreditCount       int
	PerCreditValueUSD float64
}

// Catalog resolves plan identifiers and gateway price ids to entitlements.
type Catalog struct {
	plans   map[types.PlanID]*types.Plan
	byPrice map[string]types.PlanID
}

func NewCatalog(cfg *config.Config) (*Catalog, error) {
	plans := cfg.Plans
	if len(plans) == 0 {
		plans = config.DefaultPlans()
	}
	c := &Catalog{
		plans:   make(map[types.PlanID]*types.Plan, len(plans)),
		byPrice: map[string]types.PlanID{},
	}
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan %s configured twice", p.ID)
		}
		c.plans[p.ID] = p
		for _, price := range p.ProviderPriceIDs {
			if owner, dup := c.byPrice[price]; dup {
				return nil, fmt.Errorf("price %s mapped to both %s and %s", price, owner, p.ID)
			}
			c.byPrice[price] = p.ID
		}
	}
	return c, nil
}

func (c *Catalog) Lookup(id types.PlanID) (Entitlement, error) {
	p, ok := c.plans[id]
	if !ok {
		return Entitlement{}, fmt.Errorf("%w: %q", ErrPlanNotFound, id)
	}
	return Entitlement{
		PlanID:            p.ID,
		IsUnlimited:       p.IsUnlimited,
		CreditCount:       p.CreditCount,
		PerCreditValueUSD: p.PerCreditValueUSD,
	}, nil
}

// Resolve accepts either a plan id or a gateway price id.
func (c *Catalog) Resolve(planOrPrice string) (types.PlanID, error) {
	if _, ok := c.plans[types.PlanID(planOrPrice)]; ok {
		return types.PlanID(planOrPrice), nil
	}
	if id, ok := c.byPrice[planOrPrice]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrPlanNotFound, planOrPrice)
}

func (c *Catalog) Plans() []*types.Plan {
	out := make([]*types.Plan, 0, len(types.PlanIDs))
	for _, id := range types.PlanIDs {
		if p, ok := c.plans[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

var Module = fx.Options(
	fx.Provide(NewCatalog),
)
