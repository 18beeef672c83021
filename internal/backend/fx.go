package backend

import (
	"github.com/smallbiznis/console/internal/config"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("backend",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.ConsoleMetrics `optional:"true"`
}

func NewFromConfig(p Params) (*Client, error) {
	return New(Config{
		BaseURL:            p.Config.Backend.BaseURL,
		Token:              p.Config.Backend.Token,
		Timeout:            p.Config.Backend.Timeout,
		BreakerFailures:    p.Config.Backend.BreakerFailures,
		BreakerMaxRequests: p.Config.Backend.BreakerMaxRequests,
		BreakerInterval:    p.Config.Backend.BreakerInterval,
		BreakerOpenTimeout: p.Config.Backend.BreakerOpenTimeout,
	}, nil, p.Log, p.Metrics)
}
