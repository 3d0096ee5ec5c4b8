package provider

import (
	"github.com/ecodeli/ecodeli/internal/provider/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("provider.repository",
	fx.Provide(repository.Provide),
)
