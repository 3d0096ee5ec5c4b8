package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrProviderNotFound = errors.New("provider_not_found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Provider, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Provider, error)
	// ListBillable returns approved, active providers with at least one
	// COMPLETED intervention completed in [start, end).
	ListBillable(ctx context.Context, db *gorm.DB, start, end time.Time) ([]Provider, error)
	CountActive(ctx context.Context, db *gorm.DB) (int64, error)
}
