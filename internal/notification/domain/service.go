package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Notifier delivers a message to a user. Callers treat it as fire-and-forget
// and never roll back their own work on failure.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, kind NotificationType, data map[string]any) error
}

type Service interface {
	Notifier
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, notification *Notification) error
	ListByUser(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool, limit int) ([]Notification, error)
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidMessage = errors.New("invalid_message")
)
