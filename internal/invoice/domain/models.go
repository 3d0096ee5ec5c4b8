// Package domain contains persistence models for monthly provider invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusGenerated InvoiceStatus = "GENERATED"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
)

// Invoice is the monthly statement of one provider. There is at most one per
// (provider, period), enforced by ux_provider_invoices_period.
type Invoice struct {
	ID               snowflake.ID               `gorm:"primaryKey" json:"id,string"`
	ProviderID       snowflake.ID               `gorm:"not null;uniqueIndex:ux_provider_invoices_period,priority:1" json:"provider_id,string"`
	PeriodYear       int                        `gorm:"not null;uniqueIndex:ux_provider_invoices_period,priority:2" json:"period_year"`
	PeriodMonth      int                        `gorm:"not null;uniqueIndex:ux_provider_invoices_period,priority:3" json:"period_month"`
	InvoiceNumber    string                     `gorm:"type:text;not null;uniqueIndex:ux_provider_invoices_number" json:"invoice_number"`
	Status           InvoiceStatus              `gorm:"type:text;not null;index" json:"status"`
	BillingMode      providerdomain.BillingMode `gorm:"type:text;not null" json:"billing_mode"`
	Currency         string                     `gorm:"type:text;not null" json:"currency"`
	Subtotal         decimal.Decimal            `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	CommissionRate   decimal.Decimal            `gorm:"type:numeric(5,4);not null" json:"commission_rate"`
	CommissionAmount decimal.Decimal            `gorm:"type:numeric(12,2);not null" json:"commission_amount"`
	NetAmount        decimal.Decimal            `gorm:"type:numeric(12,2);not null" json:"net_amount"`
	VATRate          decimal.Decimal            `gorm:"column:vat_rate;type:numeric(5,4);not null" json:"vat_rate"`
	VATAmount        decimal.Decimal            `gorm:"column:vat_amount;type:numeric(12,2);not null" json:"vat_amount"`
	Total            decimal.Decimal            `gorm:"type:numeric(12,2);not null" json:"total"`
	PeriodStart      time.Time                  `gorm:"not null" json:"period_start"`
	PeriodEnd        time.Time                  `gorm:"not null" json:"period_end"`
	IssuedAt         time.Time                  `gorm:"not null" json:"issued_at"`
	DueAt            time.Time                  `gorm:"not null" json:"due_at"`
	SentAt           *time.Time                 `json:"sent_at,omitempty"`
	PaidAt           *time.Time                 `json:"paid_at,omitempty"`
	Metadata         datatypes.JSONMap          `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time                  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                  `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "provider_invoices" }

// InvoiceLineItem bills exactly one intervention; an intervention is on at most one line.
type InvoiceLineItem struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id,string"`
	InvoiceID      snowflake.ID    `gorm:"not null;index" json:"invoice_id,string"`
	InterventionID snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoice_line_items_intervention" json:"intervention_id,string"`
	Position       int             `gorm:"not null" json:"position"`
	Description    string          `gorm:"type:text;not null" json:"description"`
	Quantity       int             `gorm:"not null" json:"quantity_minutes"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	CompletedAt    time.Time       `gorm:"not null" json:"completed_at"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

type TransferStatus string

const (
	TransferStatusPending TransferStatus = "PENDING"
	TransferStatusSent    TransferStatus = "SENT"
	TransferStatusFailed  TransferStatus = "FAILED"
)

// BankTransfer is the payout placeholder attached 1:1 to an invoice. While
// Simulated is set it is never a confirmed payment.
type BankTransfer struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id,string"`
	InvoiceID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_bank_transfers_invoice" json:"invoice_id,string"`
	ProviderID    snowflake.ID    `gorm:"not null;index" json:"provider_id,string"`
	Reference     string          `gorm:"type:text;not null;uniqueIndex:ux_bank_transfers_reference" json:"reference"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency      string          `gorm:"type:text;not null" json:"currency"`
	RecipientName string          `gorm:"type:text;not null" json:"recipient_name"`
	RecipientIBAN string          `gorm:"column:recipient_iban;type:text;not null" json:"-"`
	RecipientBIC  string          `gorm:"column:recipient_bic;type:text" json:"-"`
	Status        TransferStatus  `gorm:"type:text;not null;index" json:"status"`
	Simulated     bool            `gorm:"not null" json:"simulated"`
	ScheduledAt   time.Time       `gorm:"not null" json:"scheduled_at"`
	ExecutedAt    *time.Time      `json:"executed_at,omitempty"`
	FailureReason *string         `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (BankTransfer) TableName() string { return "bank_transfers" }

// InvoiceDetail is an invoice together with its lines and transfer.
type InvoiceDetail struct {
	Invoice
	Provider InvoiceParty      `json:"provider"`
	Lines    []InvoiceLineItem `json:"lines"`
	Transfer *TransferView     `json:"transfer,omitempty"`
}

type InvoiceParty struct {
	ID          snowflake.ID `json:"id,string"`
	UserID      string       `json:"user_id"`
	DisplayName string       `json:"display_name"`
}

// TransferView exposes a transfer with the IBAN masked.
type TransferView struct {
	BankTransfer
	RecipientIBANMasked string `json:"recipient_iban"`
}
