package checkout

import (
	"github.com/smallbiznis/console/internal/backend"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(
		func(c *backend.Client) Creator { return c },
		NewService,
	),
)
