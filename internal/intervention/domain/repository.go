package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// ListUnbilled returns the provider's COMPLETED interventions completed in
	// [start, end) that no invoice line references yet, oldest first.
	ListUnbilled(ctx context.Context, db *gorm.DB, providerID snowflake.ID, start, end time.Time) ([]Intervention, error)
}
