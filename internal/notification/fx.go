package notification

import (
	notificationdomain "github.com/ecodeli/ecodeli/internal/notification/domain"
	"github.com/ecodeli/ecodeli/internal/notification/repository"
	"github.com/ecodeli/ecodeli/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc notificationdomain.Service) notificationdomain.Notifier { return svc }),
)
