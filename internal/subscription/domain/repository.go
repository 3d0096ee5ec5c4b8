package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Subscription, error)
	Upsert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindCreditUsage(ctx context.Context, db *gorm.DB, userID string, year int, month time.Month) (*PriorityCreditUsage, error)
	EnsureCreditUsage(ctx context.Context, db *gorm.DB, usage *PriorityCreditUsage) error
	// IncrementCreditUsage bumps the counter only while it is below quota and
	// reports whether a credit was taken.
	IncrementCreditUsage(ctx context.Context, db *gorm.DB, userID string, year int, month time.Month, quota int, at time.Time) (bool, error)
}
