package repository

import (
	"context"
	"errors"

	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *billingdomain.BillingRun) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) LatestRun(ctx context.Context, db *gorm.DB, period string) (*billingdomain.BillingRun, error) {
	var run billingdomain.BillingRun
	err := db.WithContext(ctx).
		Where("period = ?", period).
		Order("finished_at DESC, id DESC").
		Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
