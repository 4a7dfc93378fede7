package tieredcache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend/disk"
	"github.com/thinktank/tieredcache/internal/backend/memory"
	"github.com/thinktank/tieredcache/internal/backend/object"
	"github.com/thinktank/tieredcache/internal/backend/object/gcsbucket"
	"github.com/thinktank/tieredcache/internal/backend/object/s3bucket"
	"github.com/thinktank/tieredcache/internal/backend/redis"
	"github.com/thinktank/tieredcache/internal/config"
	"github.com/thinktank/tieredcache/internal/serializer"
)

// buildChain constructs the default tier chain for namespace.
//
// StrategySingle yields [memory]. StrategyMultiLevel yields
// [memory, redis, disk], or [memory, disk] when the remote tier cannot be
// reached. A configured object store is appended last.
func buildChain[V any](ctx context.Context, namespace string, cfg options) ([]Backend[V], error) {
	mem, err := memory.New[V](namespace,
		memory.WithMaxSize(cfg.memorySize),
		memory.WithPolicy(cfg.eviction),
		memory.WithStats(cfg.stats),
		memory.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating memory tier: %w", err)
	}
	chain := []Backend[V]{mem}

	if cfg.strategy == config.StrategySingle {
		return chain, nil
	}

	ser, err := serializer.New[V](cfg.format, cfg.compression)
	if err != nil {
		return nil, err
	}

	remote, err := newRedisTier[V](ctx, namespace, ser, cfg)
	if err != nil {
		cfg.logger.Warn("redis not available, falling back to memory and disk cache",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	} else {
		chain = append(chain, remote)
	}

	durable, err := disk.New[V](cfg.dir, namespace, ser,
		disk.WithStats(cfg.stats),
		disk.WithLogger(cfg.logger),
	)
	if err != nil {
		closeAll(chain)
		return nil, fmt.Errorf("creating disk tier: %w", err)
	}
	chain = append(chain, durable)

	bucket, err := openBucket(ctx, cfg)
	if err != nil {
		closeAll(chain)
		return nil, err
	}
	if bucket != nil {
		var prefix string
		if cfg.bucket == nil {
			loc, _ := object.ParseLocation(cfg.objectURL)
			prefix = loc.Prefix
		}
		chain = append(chain, object.New[V](bucket, namespace, ser,
			object.WithPrefix(prefix),
			object.WithStats(cfg.stats),
			object.WithLogger(cfg.logger),
		))
	}

	return chain, nil
}

func newRedisTier[V any](ctx context.Context, namespace string, ser serializer.Serializer[V], cfg options) (*redis.Backend[V], error) {
	opts := []redis.Option{
		redis.WithTimeout(cfg.redisTimeout),
		redis.WithStats(cfg.stats),
		redis.WithLogger(cfg.logger),
	}
	if cfg.redisClient != nil {
		return redis.NewFromClient[V](ctx, cfg.redisClient, namespace, ser, opts...)
	}
	return redis.New[V](ctx, cfg.redisURL, namespace, ser, opts...)
}

// openBucket returns the configured object store, or nil when none is set.
func openBucket(ctx context.Context, cfg options) (object.Bucket, error) {
	if cfg.bucket != nil {
		return cfg.bucket, nil
	}
	if cfg.objectURL == "" {
		return nil, nil
	}

	loc, err := object.ParseLocation(cfg.objectURL)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case "s3":
		b, err := s3bucket.New(ctx, loc.Bucket)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", loc, err)
		}
		return b, nil
	case "gs":
		b, err := gcsbucket.New(ctx, loc.Bucket)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", loc, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported object store %q", loc.Scheme)
	}
}

func closeAll[V any](chain []Backend[V]) {
	for _, b := range chain {
		b.Close()
	}
}
