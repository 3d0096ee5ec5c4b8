package service

import (
	interventiondomain "github.com/ecodeli/ecodeli/internal/intervention/domain"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	"github.com/shopspring/decimal"
)

type breakdown struct {
	Subtotal         decimal.Decimal
	CommissionRate   decimal.Decimal
	CommissionAmount decimal.Decimal
	NetAmount        decimal.Decimal
	VATRate          decimal.Decimal
	VATAmount        decimal.Decimal
	Total            decimal.Decimal
	TotalHours       decimal.Decimal
}

// computeBreakdown sums the interventions and applies commission then VAT.
// VAT_EXCLUSIVE providers are auto-entrepreneurs: no VAT, the total is the net amount.
func computeBreakdown(items []interventiondomain.Intervention, commissionRate, vatRate decimal.Decimal, mode providerdomain.BillingMode) breakdown {
	b := breakdown{
		Subtotal:       decimal.Zero,
		CommissionRate: commissionRate,
		VATRate:        decimal.Zero,
		VATAmount:      decimal.Zero,
		TotalHours:     decimal.Zero,
	}
	for _, item := range items {
		b.Subtotal = b.Subtotal.Add(item.TotalPrice)
		b.TotalHours = b.TotalHours.Add(item.Hours())
	}
	b.Subtotal = b.Subtotal.Round(2)

	b.CommissionAmount = b.Subtotal.Mul(commissionRate).Round(2)
	b.NetAmount = b.Subtotal.Sub(b.CommissionAmount)

	if mode == providerdomain.BillingModeVATInclusive {
		b.VATRate = vatRate
		b.VATAmount = b.NetAmount.Mul(vatRate).Round(2)
	}
	b.Total = b.NetAmount.Add(b.VATAmount)
	return b
}
