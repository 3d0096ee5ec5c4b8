package subscription

import (
	"github.com/ecodeli/ecodeli/internal/subscription/repository"
	"github.com/ecodeli/ecodeli/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
