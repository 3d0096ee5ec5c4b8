package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	interventiondomain "github.com/ecodeli/ecodeli/internal/intervention/domain"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() providerdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*providerdomain.Provider, error) {
	var provider providerdomain.Provider
	err := db.WithContext(ctx).Where("id = ?", id).Take(&provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*providerdomain.Provider, error) {
	var provider providerdomain.Provider
	err := db.WithContext(ctx).Where("user_id = ?", userID).Take(&provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *repo) ListBillable(ctx context.Context, db *gorm.DB, start, end time.Time) ([]providerdomain.Provider, error) {
	completed := db.Model(&interventiondomain.Intervention{}).
		Select("1").
		Where("interventions.provider_id = providers.id").
		Where("interventions.status = ?", interventiondomain.InterventionStatusCompleted).
		Where("interventions.completed_at >= ? AND interventions.completed_at < ?", start, end)

	var providers []providerdomain.Provider
	err := db.WithContext(ctx).
		Where("validation_status = ? AND is_active = ?", providerdomain.ValidationStatusApproved, true).
		Where("EXISTS (?)", completed).
		Order("id ASC").
		Find(&providers).Error
	if err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&providerdomain.Provider{}).
		Where("validation_status = ? AND is_active = ?", providerdomain.ValidationStatusApproved, true).
		Count(&count).Error
	return count, err
}
