package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	TypeInvoiceGenerated NotificationType = "INVOICE_GENERATED"
	TypeBillingSummary   NotificationType = "BILLING_SUMMARY"
	TypePaymentReceived  NotificationType = "PAYMENT_RECEIVED"
)

// Notification is an in-app message shown to a user.
type Notification struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	UserID    string            `gorm:"type:text;not null;index:ix_notifications_user_created,priority:1" json:"user_id"`
	Type      NotificationType  `gorm:"type:text;not null" json:"type"`
	Title     string            `gorm:"type:text;not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Data      datatypes.JSONMap `gorm:"type:jsonb" json:"data,omitempty"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index:ix_notifications_user_created,priority:2" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
