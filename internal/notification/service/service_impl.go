package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ecodeli/ecodeli/internal/clock"
	notificationdomain "github.com/ecodeli/ecodeli/internal/notification/domain"
	obscontext "github.com/ecodeli/ecodeli/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  notificationdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  notificationdomain.Repository
}

func NewService(p Params) notificationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("notification.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Notify(ctx context.Context, userID, title, message string, kind notificationdomain.NotificationType, data map[string]any) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return notificationdomain.ErrInvalidUser
	}
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" || message == "" {
		return notificationdomain.ErrInvalidMessage
	}

	payload := map[string]any{}
	for key, value := range data {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if runID := obscontext.RunIDFromContext(ctx); runID != "" {
		payload["run_id"] = runID
	}

	entry := notificationdomain.Notification{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		Data:      datatypes.JSONMap(payload),
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write notification", zap.String("type", string(kind)), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notificationdomain.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, notificationdomain.ErrInvalidUser
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.repo.ListByUser(ctx, s.db, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []notificationdomain.Notification{}
	}
	return items, nil
}
