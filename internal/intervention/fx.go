package intervention

import (
	"github.com/ecodeli/ecodeli/internal/intervention/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("intervention.repository",
	fx.Provide(repository.Provide),
)
