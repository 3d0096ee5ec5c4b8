package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	interventiondomain "github.com/ecodeli/ecodeli/internal/intervention/domain"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() interventiondomain.Repository {
	return &repo{}
}

func (r *repo) ListUnbilled(ctx context.Context, db *gorm.DB, providerID snowflake.ID, start, end time.Time) ([]interventiondomain.Intervention, error) {
	billed := db.Model(&invoicedomain.InvoiceLineItem{}).
		Select("1").
		Where("invoice_line_items.intervention_id = interventions.id")

	var items []interventiondomain.Intervention
	err := db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("status = ?", interventiondomain.InterventionStatusCompleted).
		Where("completed_at >= ? AND completed_at < ?", start, end).
		Where("NOT EXISTS (?)", billed).
		Order("completed_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
