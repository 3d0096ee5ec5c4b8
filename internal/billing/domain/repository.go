package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	InsertRun(ctx context.Context, db *gorm.DB, run *BillingRun) error
	// LatestRun returns the most recently finished run for period, or nil.
	LatestRun(ctx context.Context, db *gorm.DB, period string) (*BillingRun, error)
}
