// Package tieredcachefx provides an fx module for a tiered cache registry
// configured from the environment.
package tieredcachefx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/thinktank/tieredcache"
	"github.com/thinktank/tieredcache/internal/config"
	"github.com/thinktank/tieredcache/internal/stats"
	"github.com/thinktank/tieredcache/internal/stats/logger"
	promstats "github.com/thinktank/tieredcache/internal/stats/prometheus"
)

// Module provides a *tieredcache.Registry[any] and its stats.Collector.
// Requires a *zap.Logger to be provided. Settings are loaded from the
// environment unless a config.Settings is supplied. Metrics go to a
// prometheus.Registerer when one is provided, and to the logger otherwise.
var Module = fx.Module("tieredcache",
	fx.Provide(
		newStatsCollector,
		newRegistry,
	),
)

// CollectorParams holds dependencies for the stats collector.
type CollectorParams struct {
	fx.In

	Logger     *zap.Logger
	Registerer prometheus.Registerer `optional:"true"`
}

func newStatsCollector(p CollectorParams) stats.Collector {
	if p.Registerer != nil {
		return promstats.New(p.Registerer)
	}
	return logger.New(p.Logger.Named("tieredcache.stats"))
}

// Params holds dependencies for creating the registry.
type Params struct {
	fx.In

	Settings  *config.Settings `optional:"true"`
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided registry.
type Result struct {
	fx.Out

	Registry *tieredcache.Registry[any]
}

func newRegistry(p Params) (Result, error) {
	var settings config.Settings
	if p.Settings != nil {
		settings = *p.Settings
	} else {
		s, err := config.Load(p.Logger)
		if err != nil {
			return Result{}, err
		}
		settings = s
	}

	reg, err := tieredcache.NewRegistry[any](settings,
		tieredcache.WithStats(p.Collector),
		tieredcache.WithLogger(p.Logger),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return reg.Close()
		},
	})

	return Result{Registry: reg}, nil
}
