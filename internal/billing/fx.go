package billing

import (
	"github.com/ecodeli/ecodeli/internal/billing/repository"
	"github.com/ecodeli/ecodeli/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
