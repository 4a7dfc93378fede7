// Package redis implements the remote cache tier on a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend"
	"github.com/thinktank/tieredcache/internal/serializer"
	"github.com/thinktank/tieredcache/internal/stats"
)

// DefaultTimeout bounds connection setup and every command.
const DefaultTimeout = 5 * time.Second

// ErrNilClient indicates NewFromClient was given no client.
var ErrNilClient = errors.New("redis: nil client")

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend[[]byte] = (*Backend[[]byte])(nil)

// Backend is a Redis-backed cache tier. Values are stored under
// "<namespace>:<key>" in the form produced by the serializer.
type Backend[V any] struct {
	client     goredis.UniversalClient
	ownsClient bool
	namespace  string
	serializer serializer.Serializer[V]
	timeout    time.Duration
	scanCount  int64
	logger     *zap.Logger
	collector  stats.Collector
}

// New connects to the server at url (redis://[:password@]host:port/db) and
// verifies it with PING. An unreachable server yields an error wrapping
// backend.ErrUnavailable.
func New[V any](ctx context.Context, url, namespace string, ser serializer.Serializer[V], opts ...Option) (*Backend[V], error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	redisOpts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	redisOpts.DialTimeout = cfg.timeout
	redisOpts.ReadTimeout = cfg.timeout
	redisOpts.WriteTimeout = cfg.timeout

	client := goredis.NewClient(redisOpts)
	b, err := newBackend(ctx, client, namespace, ser, cfg)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to %s: %w", redisOpts.Addr, err)
	}
	b.ownsClient = true
	return b, nil
}

// NewFromClient wraps an existing client. The client is not closed by Close.
func NewFromClient[V any](ctx context.Context, client goredis.UniversalClient, namespace string, ser serializer.Serializer[V], opts ...Option) (*Backend[V], error) {
	if client == nil {
		return nil, ErrNilClient
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newBackend(ctx, client, namespace, ser, cfg)
}

func newBackend[V any](ctx context.Context, client goredis.UniversalClient, namespace string, ser serializer.Serializer[V], cfg options) (*Backend[V], error) {
	pingCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	b := &Backend[V]{
		client:     client,
		namespace:  namespace,
		serializer: ser,
		timeout:    cfg.timeout,
		scanCount:  cfg.scanCount,
		logger:     cfg.logger.Named("redis").With(zap.String("namespace", namespace)),
		collector:  cfg.collector,
	}
	b.logger.Debug("redis backend initialized",
		zap.Stringer("format", ser.Format()),
		zap.Duration("timeout", cfg.timeout),
	)
	return b, nil
}

// Name returns "redis".
func (b *Backend[V]) Name() string {
	return "redis"
}

// Get retrieves and decodes a value.
func (b *Backend[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return zero, false
	}
	if err != nil {
		b.fail("get", key, err)
		return zero, false
	}

	v, err := b.serializer.Decode(data)
	if err != nil {
		b.fail("get", key, err)
		return zero, false
	}
	return v, true
}

// Set encodes and stores a value, with an expiry when ttl > 0.
func (b *Backend[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	data, err := b.serializer.Encode(value)
	if err != nil {
		b.fail("set", key, err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.write(ctx, b.client, key, data, ttl).Err(); err != nil {
		b.fail("set", key, err)
		return false
	}
	return true
}

// Delete removes a key and reports whether it existed.
func (b *Backend[V]) Delete(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	n, err := b.client.Del(ctx, b.key(key)).Result()
	if err != nil {
		b.fail("delete", key, err)
		return false
	}
	return n > 0
}

// Clear scans the namespace and removes every key in one DEL.
func (b *Backend[V]) Clear(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var keys []string
	iter := b.client.Scan(ctx, 0, b.pattern(), b.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		b.fail("clear", "", err)
		return false
	}
	if len(keys) == 0 {
		return true
	}

	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		b.fail("clear", "", err)
		return false
	}
	b.logger.Debug("cleared namespace", zap.Int("keys", len(keys)))
	return true
}

// GetMany retrieves several values with one MGET.
func (b *Backend[V]) GetMany(ctx context.Context, keys []string) map[string]V {
	out := make(map[string]V, len(keys))
	if len(keys) == 0 {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	physical := make([]string, len(keys))
	for i, k := range keys {
		physical[i] = b.key(k)
	}
	vals, err := b.client.MGet(ctx, physical...).Result()
	if err != nil {
		b.fail("get_many", "", err)
		return out
	}

	for i, raw := range vals {
		var data []byte
		switch v := raw.(type) {
		case nil:
			continue
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			b.fail("get_many", keys[i], fmt.Errorf("unexpected reply type %T", raw))
			continue
		}
		v, err := b.serializer.Decode(data)
		if err != nil {
			b.fail("get_many", keys[i], err)
			continue
		}
		out[keys[i]] = v
	}
	return out
}

// SetMany encodes every item, then writes them in one pipeline.
// An item that fails to encode aborts the batch before anything is sent.
func (b *Backend[V]) SetMany(ctx context.Context, items map[string]V, ttl time.Duration) bool {
	if len(items) == 0 {
		return true
	}

	encoded := make(map[string][]byte, len(items))
	for key, v := range items {
		data, err := b.serializer.Encode(v)
		if err != nil {
			b.fail("set_many", key, err)
			return false
		}
		encoded[key] = data
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for key, data := range encoded {
			b.write(ctx, p, key, data, ttl)
		}
		return nil
	})
	if err != nil {
		b.fail("set_many", "", err)
		return false
	}
	return true
}

// Close closes the client if this backend created it.
func (b *Backend[V]) Close() error {
	if !b.ownsClient {
		return nil
	}
	if err := b.client.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

// Client returns the underlying client.
func (b *Backend[V]) Client() goredis.UniversalClient {
	return b.client
}

// write stores data with ttl. go-redis sends PX when ttl is not a whole
// number of seconds, so fractional ttls are not rounded down.
func (b *Backend[V]) write(ctx context.Context, c goredis.Cmdable, key string, data []byte, ttl time.Duration) *goredis.StatusCmd {
	if ttl < 0 {
		ttl = 0
	}
	return c.Set(ctx, b.key(key), data, ttl)
}

func (b *Backend[V]) key(key string) string {
	return backend.Key(b.namespace, key)
}

// pattern matches every key in the namespace, escaping glob characters in
// the namespace prefix itself.
func (b *Backend[V]) pattern() string {
	return globEscaper.Replace(backend.Prefix(b.namespace)) + "*"
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (b *Backend[V]) fail(op, key string, err error) {
	b.collector.IncCounter(stats.MetricBackendErrors, 1)
	b.logger.Warn("redis operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
