// Package domain contains the provider records the billing run reads.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type ValidationStatus string

const (
	ValidationStatusPending  ValidationStatus = "PENDING"
	ValidationStatusApproved ValidationStatus = "APPROVED"
	ValidationStatusRejected ValidationStatus = "REJECTED"
)

// BillingMode selects how VAT is applied on monthly invoices.
type BillingMode string

const (
	// BillingModeVATExclusive is used for auto-entrepreneur providers: no VAT line.
	BillingModeVATExclusive BillingMode = "VAT_EXCLUSIVE"
	BillingModeVATInclusive BillingMode = "VAT_INCLUSIVE"
)

func (m BillingMode) Valid() bool {
	return m == BillingModeVATExclusive || m == BillingModeVATInclusive
}

type Provider struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id,string"`
	UserID           string           `gorm:"type:text;not null;uniqueIndex:ux_providers_user" json:"user_id"`
	DisplayName      string           `gorm:"type:text;not null" json:"display_name"`
	Email            string           `gorm:"type:text" json:"email,omitempty"`
	ValidationStatus ValidationStatus `gorm:"type:text;not null;index" json:"validation_status"`
	IsActive         bool             `gorm:"not null" json:"is_active"`
	// CommissionRate overrides the platform default when set (0.12 means 12%).
	CommissionRate    *decimal.Decimal `gorm:"type:numeric(5,4)" json:"commission_rate,omitempty"`
	BillingMode       BillingMode      `gorm:"type:text;not null" json:"billing_mode"`
	BankAccountHolder string           `gorm:"type:text" json:"-"`
	IBAN              string           `gorm:"type:text" json:"-"`
	BIC               string           `gorm:"type:text" json:"-"`
	CreatedAt         time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"not null" json:"updated_at"`
}

func (Provider) TableName() string { return "providers" }

// Billable reports whether the provider may receive a monthly invoice.
func (p Provider) Billable() bool {
	return p.ValidationStatus == ValidationStatusApproved && p.IsActive
}

// EffectiveCommissionRate returns the provider override, or fallback.
func (p Provider) EffectiveCommissionRate(fallback decimal.Decimal) decimal.Decimal {
	if p.CommissionRate != nil {
		return *p.CommissionRate
	}
	return fallback
}

// Suffix is the last six characters of the provider id, used in invoice numbers.
func (p Provider) Suffix() string {
	id := p.ID.String()
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
