package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thinktank/tieredcache"
	"github.com/thinktank/tieredcache/internal/backend/disk"
	"github.com/thinktank/tieredcache/internal/config"
	"github.com/thinktank/tieredcache/internal/serializer"
	statslogger "github.com/thinktank/tieredcache/internal/stats/logger"
)

// cli holds global flags and the state built from them.
type cli struct {
	namespace   string
	envFile     string
	dir         string
	redisURL    string
	strategy    string
	format      string
	compression string
	ttl         time.Duration
	memorySize  int
	verbose     bool

	settings config.Settings
	logger   *zap.Logger
	stats    *statslogger.Collector
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "tiercache",
		Short: "Inspect and exercise a memory, Redis and filesystem cache",
		Long: `tiercache reads and writes entries of a tiered cache namespace.

Settings come from the environment (CACHE_*, REDIS_URL, LOG_LEVEL),
optionally seeded from a .env file, and are overridden by flags.

Examples:
  # Store and read back a value
  tiercache -n reports set q3 '{"revenue": 12}'
  tiercache -n reports get q3

  # Summarize and check the filesystem tier
  tiercache -n reports stats
  tiercache -n reports verify --prune

  # Measure latency of the configured chain
  tiercache bench --ops 5000 --format markdown`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.verbose && c.stats != nil {
				c.stats.Flush()
			}
			if c.logger != nil {
				c.logger.Sync()
			}
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&c.namespace, "namespace", "n", "default", "cache namespace")
	f.StringVar(&c.envFile, "env-file", ".env", "optional .env file to seed the environment")
	f.StringVar(&c.dir, "dir", config.DefaultDir, "filesystem tier root directory")
	f.StringVar(&c.redisURL, "redis-url", config.DefaultRedisURL, "Redis tier URL")
	f.StringVar(&c.strategy, "strategy", string(config.StrategyMultiLevel), "tier chain: single or multi_level")
	f.StringVar(&c.format, "serializer", serializer.FormatJSON.String(), "payload format: json or msgpack")
	f.StringVar(&c.compression, "compression", "none", "payload compression: none, gzip or zstd")
	f.DurationVar(&c.ttl, "ttl", config.DefaultTTL, "default entry TTL")
	f.IntVar(&c.memorySize, "memory-size", config.DefaultMemoryMaxSize, "in-process tier capacity")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging and print metrics")

	cmd.AddCommand(
		newGetCmd(c),
		newSetCmd(c),
		newDeleteCmd(c),
		newClearCmd(c),
		newStatsCmd(c),
		newVerifyCmd(c),
		newBenchCmd(c),
		newLoadCmd(c),
	)
	return cmd
}

// setup loads settings from the environment and applies explicit flags.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(c.envFile); err != nil {
		return err
	}

	bootstrap := zap.NewNop()
	s, err := config.Load(bootstrap)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		s.Dir = c.dir
	}
	if flags.Changed("redis-url") {
		s.RedisURL = c.redisURL
	}
	if flags.Changed("strategy") {
		s.Strategy = config.Strategy(c.strategy)
	}
	if flags.Changed("serializer") {
		s.Serializer = c.format
	}
	if flags.Changed("compression") {
		s.Compression = c.compression
	}
	if flags.Changed("ttl") {
		s.TTL = c.ttl
	}
	if flags.Changed("memory-size") {
		s.MemoryMaxSize = c.memorySize
	}
	if c.verbose {
		s.LogLevel = "debug"
	}
	if err := s.Validate(); err != nil {
		return err
	}
	c.settings = s

	logger, err := config.NewLogger(s.LogLevel)
	if err != nil {
		return err
	}
	c.logger = logger
	c.stats = statslogger.New(logger.Named("stats"))
	return nil
}

// openCache builds the configured chain for namespace.
func (c *cli) openCache(ctx context.Context, namespace string) (*tieredcache.Cache[any], error) {
	settings, err := tieredcache.WithSettings(c.settings)
	if err != nil {
		return nil, err
	}
	return tieredcache.New[any](ctx, namespace,
		settings,
		tieredcache.WithLogger(c.logger),
		tieredcache.WithStats(c.stats),
	)
}

// openDisk opens the filesystem tier of the current namespace alone.
func (c *cli) openDisk() (*disk.Backend[any], error) {
	format, err := serializer.ParseFormat(c.settings.Serializer)
	if err != nil {
		return nil, err
	}
	compression, err := serializer.Compression(c.settings.Compression)
	if err != nil {
		return nil, err
	}
	ser, err := serializer.New[any](format, compression)
	if err != nil {
		return nil, err
	}
	return disk.New[any](c.settings.Dir, c.namespace, ser,
		disk.WithLogger(c.logger),
		disk.WithStats(c.stats),
	)
}
