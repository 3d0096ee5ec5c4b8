package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	ProviderID  *snowflake.ID
	PeriodYear  int
	PeriodMonth int
	Status      InvoiceStatus
	Limit       int
	Offset      int
}

type PeriodStats struct {
	InvoiceCount     int64
	PaidCount        int64
	PendingTransfers int64
	TotalAmount      decimal.Decimal
}

type Repository interface {
	FindByProviderPeriod(ctx context.Context, db *gorm.DB, providerID snowflake.ID, year, month int, forUpdate bool) (*Invoice, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Invoice, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLineItem, error)
	FindTransfer(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*BankTransfer, error)

	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []InvoiceLineItem) error
	InsertTransfer(ctx context.Context, db *gorm.DB, transfer *BankTransfer) error
	// DeleteInvoice removes an invoice with its lines and transfer.
	DeleteInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status InvoiceStatus, paidAt *time.Time, at time.Time) error
	UpdateTransferStatus(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, status TransferStatus, reason *string, at time.Time) error

	CountByPeriod(ctx context.Context, db *gorm.DB, year, month int) (PeriodStats, error)
}
