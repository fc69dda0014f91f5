package territory

import (
	"github.com/smallbiznis/territorial/internal/territory/repository"
	"github.com/smallbiznis/territorial/internal/territory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("territory.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
