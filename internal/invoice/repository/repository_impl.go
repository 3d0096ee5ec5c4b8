package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	"github.com/ecodeli/ecodeli/pkg/db"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) FindByProviderPeriod(ctx context.Context, conn *gorm.DB, providerID snowflake.ID, year, month int, forUpdate bool) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	query := conn.WithContext(ctx).
		Where("provider_id = ? AND period_year = ? AND period_month = ?", providerID, year, month)
	if forUpdate && db.SupportsRowLocks(conn) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID, forUpdate bool) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	query := conn.WithContext(ctx).Where("id = ?", id)
	if forUpdate && db.SupportsRowLocks(conn) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindByNumber(ctx context.Context, conn *gorm.DB, number string) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := conn.WithContext(ctx).Where("invoice_number = ?", number).Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	query := conn.WithContext(ctx).Model(&invoicedomain.Invoice{})
	if filter.ProviderID != nil {
		query = query.Where("provider_id = ?", *filter.ProviderID)
	}
	if filter.PeriodYear > 0 {
		query = query.Where("period_year = ?", filter.PeriodYear)
	}
	if filter.PeriodMonth > 0 {
		query = query.Where("period_month = ?", filter.PeriodMonth)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var items []invoicedomain.Invoice
	if err := query.Order("period_year DESC, period_month DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListLines(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceLineItem, error) {
	var lines []invoicedomain.InvoiceLineItem
	err := conn.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) FindTransfer(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID) (*invoicedomain.BankTransfer, error) {
	var transfer invoicedomain.BankTransfer
	err := conn.WithContext(ctx).Where("invoice_id = ?", invoiceID).Take(&transfer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *repo) InsertInvoice(ctx context.Context, conn *gorm.DB, invoice *invoicedomain.Invoice) error {
	return conn.WithContext(ctx).Create(invoice).Error
}

func (r *repo) InsertLines(ctx context.Context, conn *gorm.DB, lines []invoicedomain.InvoiceLineItem) error {
	if len(lines) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&lines).Error
}

func (r *repo) InsertTransfer(ctx context.Context, conn *gorm.DB, transfer *invoicedomain.BankTransfer) error {
	return conn.WithContext(ctx).Create(transfer).Error
}

func (r *repo) DeleteInvoice(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	conn = conn.WithContext(ctx)
	if err := conn.Where("invoice_id = ?", id).Delete(&invoicedomain.InvoiceLineItem{}).Error; err != nil {
		return err
	}
	if err := conn.Where("invoice_id = ?", id).Delete(&invoicedomain.BankTransfer{}).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", id).Delete(&invoicedomain.Invoice{}).Error
}

// MarkSent moves a GENERATED invoice to SENT. It reports false when the
// invoice was already past GENERATED.
func (r *repo) MarkSent(ctx context.Context, conn *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := conn.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status = ?", id, invoicedomain.InvoiceStatusGenerated).
		Updates(map[string]any{
			"status":     invoicedomain.InvoiceStatusSent,
			"sent_at":    at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) UpdateStatus(ctx context.Context, conn *gorm.DB, id snowflake.ID, status invoicedomain.InvoiceStatus, paidAt *time.Time, at time.Time) error {
	return conn.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"paid_at":    paidAt,
			"updated_at": at,
		}).Error
}

func (r *repo) UpdateTransferStatus(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID, status invoicedomain.TransferStatus, reason *string, at time.Time) error {
	updates := map[string]any{
		"status":         status,
		"failure_reason": reason,
		"updated_at":     at,
	}
	if status == invoicedomain.TransferStatusSent {
		updates["executed_at"] = at
	}
	return conn.WithContext(ctx).
		Model(&invoicedomain.BankTransfer{}).
		Where("invoice_id = ?", invoiceID).
		Updates(updates).Error
}

func (r *repo) CountByPeriod(ctx context.Context, conn *gorm.DB, year, month int) (invoicedomain.PeriodStats, error) {
	var stats invoicedomain.PeriodStats
	conn = conn.WithContext(ctx)

	if err := conn.Model(&invoicedomain.Invoice{}).
		Where("period_year = ? AND period_month = ?", year, month).
		Count(&stats.InvoiceCount).Error; err != nil {
		return invoicedomain.PeriodStats{}, err
	}
	if err := conn.Model(&invoicedomain.Invoice{}).
		Where("period_year = ? AND period_month = ? AND status = ?", year, month, invoicedomain.InvoiceStatusPaid).
		Count(&stats.PaidCount).Error; err != nil {
		return invoicedomain.PeriodStats{}, err
	}
	if err := conn.Model(&invoicedomain.BankTransfer{}).
		Joins("JOIN provider_invoices ON provider_invoices.id = bank_transfers.invoice_id").
		Where("provider_invoices.period_year = ? AND provider_invoices.period_month = ? AND bank_transfers.status = ?", year, month, invoicedomain.TransferStatusPending).
		Count(&stats.PendingTransfers).Error; err != nil {
		return invoicedomain.PeriodStats{}, err
	}
	// SUM over numeric scans differently per dialect, so totals are added up here.
	var totals []decimal.Decimal
	if err := conn.Model(&invoicedomain.Invoice{}).
		Where("period_year = ? AND period_month = ?", year, month).
		Pluck("total", &totals).Error; err != nil {
		return invoicedomain.PeriodStats{}, err
	}
	stats.TotalAmount = decimal.Zero
	for _, total := range totals {
		stats.TotalAmount = stats.TotalAmount.Add(total)
	}
	return stats, nil
}
