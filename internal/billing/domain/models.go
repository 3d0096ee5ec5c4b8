// Package domain describes the monthly provider billing run.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type ProviderStatus string

const (
	ProviderStatusSuccess ProviderStatus = "SUCCESS"
	ProviderStatusSkipped ProviderStatus = "SKIPPED"
	ProviderStatusError   ProviderStatus = "ERROR"
)

const (
	SkipReasonAlreadyInvoiced     = "already_invoiced"
	SkipReasonNoCompletedWork     = "no_completed_work"
	SkipReasonProviderNotBillable = "provider_not_billable"
)

// RunRequest selects the period to bill. An empty Period bills the previous
// calendar month. Force regenerates invoices that already exist.
type RunRequest struct {
	Period  string `json:"month" form:"month"`
	Force   bool   `json:"force" form:"force"`
	Trigger string `json:"-" form:"-"`
}

type ProviderResult struct {
	ProviderID    snowflake.ID     `json:"provider_id,string"`
	ProviderName  string           `json:"provider_name"`
	Status        ProviderStatus   `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	InvoiceID     *snowflake.ID    `json:"invoice_id,string,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	Regenerated   bool             `json:"regenerated,omitempty"`
	Notified      bool             `json:"notified,omitempty"`
}

type RunResult struct {
	RunID       string           `json:"run_id"`
	Period      string           `json:"period"`
	Force       bool             `json:"force"`
	Processed   int              `json:"processed"`
	Success     int              `json:"success"`
	Skipped     int              `json:"skipped"`
	Errors      int              `json:"errors"`
	TotalBilled decimal.Decimal  `json:"total_billed"`
	Results     []ProviderResult `json:"results"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}

// StatusResult describes the period the current month's run bills, which is
// the previous calendar month.
type StatusResult struct {
	BilledPeriod     string          `json:"billed_period"`
	InvoiceCount     int64           `json:"invoice_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaidCount        int64           `json:"paid_count"`
	PendingTransfers int64           `json:"pending_transfers"`
	ActiveProviders  int64           `json:"active_providers"`
	NextBillingDate  time.Time       `json:"next_billing_date"`
	LastRun          *BillingRun     `json:"last_run,omitempty"`
}

// BillingRun records the outcome of one run so the scheduler can tell
// whether a period still needs work after a restart.
type BillingRun struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id,string"`
	RunID       string          `gorm:"type:text;not null;uniqueIndex:ux_billing_runs_run_id" json:"run_id"`
	Period      string          `gorm:"type:text;not null;index:ix_billing_runs_period_finished,priority:1" json:"period"`
	Trigger     string          `gorm:"type:text;not null" json:"trigger"`
	Force       bool            `gorm:"not null" json:"force"`
	Processed   int             `gorm:"not null" json:"processed"`
	Success     int             `gorm:"not null" json:"success"`
	Skipped     int             `gorm:"not null" json:"skipped"`
	Errors      int             `gorm:"not null" json:"errors"`
	TotalBilled decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_billed"`
	StartedAt   time.Time       `gorm:"not null" json:"started_at"`
	FinishedAt  time.Time       `gorm:"not null;index:ix_billing_runs_period_finished,priority:2" json:"finished_at"`
	// Failure is set when the run stopped before any provider was processed.
	Failure string `gorm:"type:text" json:"failure,omitempty"`
}

func (BillingRun) TableName() string { return "billing_runs" }

// Clean reports whether every eligible provider ended up invoiced or skipped.
func (r BillingRun) Clean() bool {
	return r.Errors == 0 && r.Failure == ""
}
