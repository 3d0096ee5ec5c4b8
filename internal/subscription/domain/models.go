// Package domain contains persistence models for client subscriptions and priority credits.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ecodeli/ecodeli/internal/plan"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

// Subscription is the single plan row of a user. A user without a row is on FREE.
type Subscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id,string"`
	UserID             string             `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	Plan               plan.Tier          `gorm:"type:text;not null" json:"plan"`
	Status             SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	CurrentPeriodStart time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// PriorityCreditUsage counts free priority deliveries consumed in one calendar month.
// The counter resets implicitly because each month has its own row.
type PriorityCreditUsage struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    string       `gorm:"type:text;not null;uniqueIndex:ux_priority_credit_usage_period,priority:1"`
	Year      int          `gorm:"not null;uniqueIndex:ux_priority_credit_usage_period,priority:2"`
	Month     int          `gorm:"not null;uniqueIndex:ux_priority_credit_usage_period,priority:3"`
	Used      int          `gorm:"not null"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (PriorityCreditUsage) TableName() string { return "priority_credit_usages" }

type PriorityCredits struct {
	Quota     int `json:"quota"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// SubscriptionView is what a client sees of its own subscription.
type SubscriptionView struct {
	UserID          string             `json:"user_id"`
	Plan            plan.Tier          `json:"plan"`
	Status          SubscriptionStatus `json:"status"`
	Since           *time.Time         `json:"since,omitempty"`
	PriorityCredits PriorityCredits    `json:"priority_credits"`
}
