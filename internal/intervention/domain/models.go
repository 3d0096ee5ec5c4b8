// Package domain describes completed provider work as the billing run sees it.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type InterventionStatus string

const (
	InterventionStatusScheduled  InterventionStatus = "SCHEDULED"
	InterventionStatusInProgress InterventionStatus = "IN_PROGRESS"
	InterventionStatusCompleted  InterventionStatus = "COMPLETED"
	InterventionStatusCancelled  InterventionStatus = "CANCELLED"
)

// Intervention is a service delivered by a provider to a client. Once
// COMPLETED it is immutable apart from being referenced by one invoice line.
type Intervention struct {
	ID              snowflake.ID       `gorm:"primaryKey" json:"id,string"`
	ProviderID      snowflake.ID       `gorm:"not null;index:ix_interventions_provider_completed,priority:1" json:"provider_id,string"`
	ClientID        string             `gorm:"type:text;not null" json:"client_id"`
	Description     string             `gorm:"type:text;not null" json:"description"`
	DurationMinutes int                `gorm:"not null" json:"duration_minutes"`
	UnitPrice       decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice      decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Status          InterventionStatus `gorm:"type:text;not null;index" json:"status"`
	CompletedAt     *time.Time         `gorm:"index:ix_interventions_provider_completed,priority:2" json:"completed_at,omitempty"`
	CreatedAt       time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"not null" json:"updated_at"`
}

func (Intervention) TableName() string { return "interventions" }

// Hours is the billed duration in hours, rounded to two decimals.
func (i Intervention) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(i.DurationMinutes)).Div(decimal.NewFromInt(60)).Round(2)
}
