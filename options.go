package tieredcache

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend/memory/cachestrategy/lru"
	"github.com/thinktank/tieredcache/internal/backend/object"
	"github.com/thinktank/tieredcache/internal/codec"
	"github.com/thinktank/tieredcache/internal/config"
	"github.com/thinktank/tieredcache/internal/serializer"
	"github.com/thinktank/tieredcache/internal/stats"
)

// Option configures a Cache.
type Option interface {
	apply(*options)
}

// options holds the cache configuration.
type options struct {
	defaultTTL time.Duration
	stats      stats.Collector
	logger     *zap.Logger

	// Default chain construction; ignored by NewWithBackends.
	strategy     config.Strategy
	memorySize   int
	eviction     lru.Policy
	redisURL     string
	redisClient  goredis.UniversalClient
	redisTimeout time.Duration
	dir          string
	format       serializer.Format
	compression  codec.Codec
	objectURL    string
	bucket       object.Bucket
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		defaultTTL:   config.DefaultTTL,
		stats:        stats.NewNoop(),
		logger:       zap.NewNop(),
		strategy:     config.StrategyMultiLevel,
		memorySize:   config.DefaultMemoryMaxSize,
		eviction:     lru.PolicyInsertion,
		redisURL:     config.DefaultRedisURL,
		redisTimeout: config.DefaultRedisTimeout,
		dir:          config.DefaultDir,
		format:       serializer.FormatJSON,
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithDefaultTTL sets the TTL used when Set is called with a zero ttl and
// when faster tiers are populated after a hit. Default is one hour.
func WithDefaultTTL(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.defaultTTL = d
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithStrategy selects the default tier chain. StrategySingle builds an
// in-process tier only.
func WithStrategy(s config.Strategy) Option {
	return optionFunc(func(o *options) {
		o.strategy = s
	})
}

// WithMemorySize sets the in-process tier capacity. Default is 1000.
func WithMemorySize(n int) Option {
	return optionFunc(func(o *options) {
		o.memorySize = n
	})
}

// WithEvictionPolicy sets the in-process tier eviction policy.
func WithEvictionPolicy(p lru.Policy) Option {
	return optionFunc(func(o *options) {
		o.eviction = p
	})
}

// WithRedisURL sets the remote tier URL.
func WithRedisURL(url string) Option {
	return optionFunc(func(o *options) {
		o.redisURL = url
	})
}

// WithRedisClient uses an existing client for the remote tier instead of
// dialing WithRedisURL. The client stays owned by the caller.
func WithRedisClient(c goredis.UniversalClient) Option {
	return optionFunc(func(o *options) {
		o.redisClient = c
	})
}

// WithRedisTimeout bounds remote tier connection setup and commands.
func WithRedisTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.redisTimeout = d
	})
}

// WithDirectory sets the durable tier root directory.
func WithDirectory(dir string) Option {
	return optionFunc(func(o *options) {
		o.dir = dir
	})
}

// WithFormat sets the serializer used by the remote, durable and object tiers.
func WithFormat(f serializer.Format) Option {
	return optionFunc(func(o *options) {
		o.format = f
	})
}

// WithCompression compresses serialized payloads with c.
func WithCompression(c codec.Codec) Option {
	return optionFunc(func(o *options) {
		o.compression = c
	})
}

// WithObjectURL appends an object-store tier (s3:// or gs://) after the
// durable tier.
func WithObjectURL(url string) Option {
	return optionFunc(func(o *options) {
		o.objectURL = url
	})
}

// WithBucket appends an object-store tier over an already opened bucket.
// It takes precedence over WithObjectURL.
func WithBucket(b object.Bucket) Option {
	return optionFunc(func(o *options) {
		o.bucket = b
	})
}

// WithSettings applies loaded settings. Settings are validated first.
func WithSettings(s config.Settings) (Option, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	eviction, err := lru.ParsePolicy(s.Eviction)
	if err != nil {
		return nil, err
	}
	format, err := serializer.ParseFormat(s.Serializer)
	if err != nil {
		return nil, err
	}
	compression, err := serializer.Compression(s.Compression)
	if err != nil {
		return nil, err
	}

	return optionFunc(func(o *options) {
		o.defaultTTL = s.TTL
		o.strategy = s.Strategy
		o.memorySize = s.MemoryMaxSize
		o.eviction = eviction
		o.redisURL = s.RedisURL
		o.redisTimeout = s.RedisTimeout
		o.dir = s.Dir
		o.format = format
		o.compression = compression
		o.objectURL = s.ObjectURL
	}), nil
}
