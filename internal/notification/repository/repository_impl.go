package repository

import (
	"context"

	notificationdomain "github.com/ecodeli/ecodeli/internal/notification/domain"
	"github.com/ecodeli/ecodeli/pkg/db/option"
	"github.com/ecodeli/ecodeli/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() notificationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, notification *notificationdomain.Notification) error {
	return repository.ProvideStore[notificationdomain.Notification](db).Create(ctx, notification)
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool, limit int) ([]notificationdomain.Notification, error) {
	opts := []option.QueryOption{option.OrderBy("created_at DESC, id DESC"), option.Limit(limit)}
	if unreadOnly {
		opts = append(opts, option.Where("read_at IS NULL"))
	}

	store := repository.ProvideStore[notificationdomain.Notification](db)
	rows, err := store.Find(ctx, &notificationdomain.Notification{UserID: userID}, opts...)
	if err != nil {
		return nil, err
	}

	items := make([]notificationdomain.Notification, 0, len(rows))
	for _, row := range rows {
		items = append(items, *row)
	}
	return items, nil
}
