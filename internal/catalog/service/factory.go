package service

import (
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Factory builds one Store per console session over a shared source.
type Factory struct {
	source  catalogdomain.Source
	log     *zap.Logger
	metrics *obsmetrics.ConsoleMetrics
}

type FactoryParams struct {
	fx.In

	Source  catalogdomain.Source
	Log     *zap.Logger
	Metrics *obsmetrics.ConsoleMetrics `optional:"true"`
}

func NewFactory(p FactoryParams) *Factory {
	return &Factory{source: p.Source, log: p.Log, metrics: p.Metrics}
}

func (f *Factory) NewStore() *Store {
	return NewStore(f.source, f.log, f.metrics)
}
