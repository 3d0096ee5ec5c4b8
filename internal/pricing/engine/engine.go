// Package engine computes subscription-tier price breakdowns.
//
// Every function here is pure: the same inputs always produce the same
// quote, so the result can be previewed by a client and recomputed by the
// server at checkout.
package engine

import (
	"errors"

	"github.com/ecodeli/ecodeli/internal/plan"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid_amount")

var hundred = decimal.NewFromInt(100)

// Input describes one pricing request.
type Input struct {
	BasePrice      decimal.Decimal
	Tier           plan.Tier
	IsPriority     bool
	IsSmallPackage bool
	// PriorityQuotaExhausted switches quota-based plans to their overage surcharge.
	PriorityQuotaExhausted bool
}

type AppliedDiscounts struct {
	General      decimal.Decimal `json:"general"`
	Priority     decimal.Decimal `json:"priority"`
	SmallPackage decimal.Decimal `json:"small_package"`
}

// Quote is the price breakdown. It is never persisted.
type Quote struct {
	Plan                        plan.Tier        `json:"plan"`
	BasePrice                   decimal.Decimal  `json:"base_price"`
	DiscountPercent             decimal.Decimal  `json:"discount_percent"`
	GeneralDiscountPercent      decimal.Decimal  `json:"general_discount_percent"`
	SmallPackageDiscountPercent decimal.Decimal  `json:"small_package_discount_percent"`
	PriorityChargePercent       decimal.Decimal  `json:"priority_charge_percent"`
	FinalPrice                  decimal.Decimal  `json:"final_price"`
	Savings                     decimal.Decimal  `json:"savings"`
	AppliedDiscounts            AppliedDiscounts `json:"applied_discounts"`
	IsPriority                  bool             `json:"is_priority"`
	IsSmallPackage              bool             `json:"is_small_package"`
	PriorityCovered             bool             `json:"priority_covered"`
}

// Compute applies the plan discount to the base price, then adds the priority
// surcharge computed on the original base price.
func Compute(in Input) (Quote, error) {
	p, err := plan.Lookup(in.Tier)
	if err != nil {
		return Quote{}, err
	}
	if in.BasePrice.IsNegative() {
		return Quote{}, ErrInvalidAmount
	}

	base := in.BasePrice
	generalPct := p.GeneralDiscountPercent
	smallPct := decimal.Zero
	if in.IsSmallPackage {
		smallPct = p.SmallPackageDiscountPercent
	}
	discountPct := generalPct.Add(smallPct)

	generalAmount := percentOf(base, generalPct)
	smallAmount := percentOf(base, smallPct)
	afterGeneral := base.Sub(generalAmount).Sub(smallAmount)

	priorityPct := decimal.Zero
	covered := false
	if in.IsPriority {
		priorityPct = p.PriorityChargePercent
		if p.HasPriorityQuota() {
			if in.PriorityQuotaExhausted {
				priorityPct = p.PriorityOverageCharge
			} else {
				covered = true
			}
		}
	}
	priorityAmount := percentOf(base, priorityPct)

	final := afterGeneral.Add(priorityAmount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	final = final.Round(2)

	return Quote{
		Plan:                        p.Tier,
		BasePrice:                   base,
		DiscountPercent:             discountPct,
		GeneralDiscountPercent:      generalPct,
		SmallPackageDiscountPercent: smallPct,
		PriorityChargePercent:       priorityPct,
		FinalPrice:                  final,
		Savings:                     base.Sub(final),
		AppliedDiscounts: AppliedDiscounts{
			General:      generalAmount,
			Priority:     priorityAmount,
			SmallPackage: smallAmount,
		},
		IsPriority:      in.IsPriority,
		IsSmallPackage:  in.IsSmallPackage,
		PriorityCovered: covered,
	}, nil
}

// QuotePrice is the plain four-argument form of Compute.
func QuotePrice(basePrice decimal.Decimal, tier plan.Tier, isPriority, isSmallPackage bool) (Quote, error) {
	return Compute(Input{
		BasePrice:      basePrice,
		Tier:           tier,
		IsPriority:     isPriority,
		IsSmallPackage: isSmallPackage,
	})
}

// CanUseInsurance reports whether value is within the plan's insurable limit.
func CanUseInsurance(tier plan.Tier, value decimal.Decimal) (bool, error) {
	p, err := plan.Lookup(tier)
	if err != nil {
		return false, err
	}
	if value.IsNegative() {
		return false, ErrInvalidAmount
	}
	return p.CanInsure(value), nil
}

type StorageQuote struct {
	Plan            plan.Tier       `json:"plan"`
	PricePerDay     decimal.Decimal `json:"price_per_day"`
	Days            int             `json:"days"`
	BasePrice       decimal.Decimal `json:"base_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Discount        decimal.Decimal `json:"discount"`
	FinalPrice      decimal.Decimal `json:"final_price"`
}

// QuoteStorageRental prices a storage box rental for a number of days.
func QuoteStorageRental(pricePerDay decimal.Decimal, days int, tier plan.Tier) (StorageQuote, error) {
	p, err := plan.Lookup(tier)
	if err != nil {
		return StorageQuote{}, err
	}
	if pricePerDay.IsNegative() || days <= 0 {
		return StorageQuote{}, ErrInvalidAmount
	}

	base := pricePerDay.Mul(decimal.NewFromInt(int64(days)))
	discount := percentOf(base, p.StorageDiscountPercent)
	return StorageQuote{
		Plan:            p.Tier,
		PricePerDay:     pricePerDay,
		Days:            days,
		BasePrice:       base,
		DiscountPercent: p.StorageDiscountPercent,
		Discount:        discount.Round(2),
		FinalPrice:      base.Sub(discount).Round(2),
	}, nil
}

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	if percent.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(percent).Div(hundred)
}
