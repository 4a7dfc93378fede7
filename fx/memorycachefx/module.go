// Package memorycachefx provides an fx module for an in-process only cache
// registry. Useful for testing.
package memorycachefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/thinktank/tieredcache"
	"github.com/thinktank/tieredcache/internal/config"
	"github.com/thinktank/tieredcache/internal/stats"
	"github.com/thinktank/tieredcache/internal/stats/logger"
)

// Config holds configuration for the in-process registry.
type Config struct {
	// MaxSize is the capacity of each namespace cache.
	// Default is 1000.
	MaxSize int
}

// Module provides an in-process *tieredcache.Registry[any] for testing.
// Requires a *zap.Logger to be provided. Config is optional.
var Module = fx.Module("memorycache",
	fx.Provide(
		newStatsCollector,
		newRegistry,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("tieredcache.stats"))
}

// Params holds dependencies for creating the registry.
type Params struct {
	fx.In

	Config    Config `optional:"true"`
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided registry and its collector.
type Result struct {
	fx.Out

	Registry *tieredcache.Registry[any]
	Stats    *logger.Collector // Exposed for test assertions
}

func newRegistry(p Params) (Result, error) {
	settings := config.Default()
	settings.Strategy = config.StrategySingle
	if p.Config.MaxSize > 0 {
		settings.MemoryMaxSize = p.Config.MaxSize
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

	collector, _ := p.Collector.(*logger.Collector)
	return Result{
		Registry: reg,
		Stats:    collector,
	}, nil
}
