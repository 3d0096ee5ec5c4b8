package invoice

import (
	"github.com/ecodeli/ecodeli/internal/invoice/repository"
	"github.com/ecodeli/ecodeli/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
