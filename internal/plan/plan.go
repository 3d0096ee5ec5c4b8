// Package plan holds the static subscription tier table that drives pricing.
package plan

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierFree    Tier = "FREE"
	TierStarter Tier = "STARTER"
	TierPremium Tier = "PREMIUM"
)

var ErrInvalidPlan = errors.New("invalid_plan")

// Plan is immutable reference data. Percentages are expressed in points (5 means 5%).
type Plan struct {
	Tier                        Tier            `json:"tier"`
	MonthlyPrice                decimal.Decimal `json:"monthly_price"`
	GeneralDiscountPercent      decimal.Decimal `json:"general_discount_percent"`
	SmallPackageDiscountPercent decimal.Decimal `json:"small_package_discount_percent"`
	PriorityChargePercent       decimal.Decimal `json:"priority_charge_percent"`
	PriorityOverageCharge       decimal.Decimal `json:"priority_overage_charge_percent"`
	MaxInsurableValue           decimal.Decimal `json:"max_insurable_value"`
	MonthlyPriorityQuota        int             `json:"monthly_priority_quota"`
	StorageDiscountPercent      decimal.Decimal `json:"storage_discount_percent"`
}

// HasPriorityQuota reports whether priority surcharges are waived against a monthly credit counter.
func (p Plan) HasPriorityQuota() bool {
	return p.MonthlyPriorityQuota > 0
}

func (p Plan) CanInsure(value decimal.Decimal) bool {
	return value.LessThanOrEqual(p.MaxInsurableValue)
}

var (
	pct = decimal.NewFromInt

	table = map[Tier]Plan{
		TierFree: {
			Tier:                        TierFree,
			MonthlyPrice:                decimal.Zero,
			GeneralDiscountPercent:      decimal.Zero,
			SmallPackageDiscountPercent: decimal.Zero,
			PriorityChargePercent:       pct(15),
			PriorityOverageCharge:       pct(15),
			MaxInsurableValue:           decimal.Zero,
			MonthlyPriorityQuota:        0,
			StorageDiscountPercent:      decimal.Zero,
		},
		TierStarter: {
			Tier:                        TierStarter,
			MonthlyPrice:                decimal.RequireFromString("9.90"),
			GeneralDiscountPercent:      pct(5),
			SmallPackageDiscountPercent: pct(5),
			PriorityChargePercent:       pct(5),
			PriorityOverageCharge:       pct(5),
			MaxInsurableValue:           pct(115),
			MonthlyPriorityQuota:        0,
			StorageDiscountPercent:      pct(7),
		},
		TierPremium: {
			Tier:                        TierPremium,
			MonthlyPrice:                decimal.RequireFromString("19.99"),
			GeneralDiscountPercent:      pct(9),
			SmallPackageDiscountPercent: decimal.Zero,
			PriorityChargePercent:       decimal.Zero,
			PriorityOverageCharge:       pct(5),
			MaxInsurableValue:           pct(3000),
			MonthlyPriorityQuota:        3,
			StorageDiscountPercent:      pct(15),
		},
	}

	order = []Tier{TierFree, TierStarter, TierPremium}
)

// ParseTier accepts any casing and surrounding whitespace.
func ParseTier(raw string) (Tier, error) {
	tier := Tier(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := table[tier]; !ok {
		return "", ErrInvalidPlan
	}
	return tier, nil
}

func (t Tier) Valid() bool {
	_, ok := table[t]
	return ok
}

func Lookup(tier Tier) (Plan, error) {
	p, ok := table[tier]
	if !ok {
		return Plan{}, ErrInvalidPlan
	}
	return p, nil
}

// All returns the plans from cheapest to most expensive.
func All() []Plan {
	out := make([]Plan, 0, len(order))
	for _, tier := range order {
		out = append(out, table[tier])
	}
	return out
}
