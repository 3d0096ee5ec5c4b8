package repository

import (
	"context"
	"errors"
	"time"

	subscriptiondomain "github.com/ecodeli/ecodeli/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Where("user_id = ?", userID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan",
			"status",
			"current_period_start",
			"current_period_end",
			"cancelled_at",
			"updated_at",
		}),
	}).Create(subscription).Error
}

func (r *repo) FindCreditUsage(ctx context.Context, db *gorm.DB, userID string, year int, month time.Month) (*subscriptiondomain.PriorityCreditUsage, error) {
	var usage subscriptiondomain.PriorityCreditUsage
	err := db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND month = ?", userID, year, int(month)).
		Take(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (r *repo) EnsureCreditUsage(ctx context.Context, db *gorm.DB, usage *subscriptiondomain.PriorityCreditUsage) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(usage).Error
}

func (r *repo) IncrementCreditUsage(ctx context.Context, db *gorm.DB, userID string, year int, month time.Month, quota int, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&subscriptiondomain.PriorityCreditUsage{}).
		Where("user_id = ? AND year = ? AND month = ? AND used < ?", userID, year, int(month), quota).
		Updates(map[string]any{
			"used":       gorm.Expr("used + 1"),
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
