package catalog

import (
	"github.com/smallbiznis/console/internal/backend"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	"github.com/smallbiznis/console/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(
		func(c *backend.Client) catalogdomain.Source { return c },
		service.NewFactory,
	),
)
