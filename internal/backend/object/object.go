// Package object implements a durable cache tier on a blob store such as
// S3 or Google Cloud Storage.
//
// Objects are named "<prefix><namespace>/<sha256(key)>.<ext>", with the
// namespace path-escaped so it is always a single segment. The expiry of an
// entry written with a TTL travels in the object's user metadata, so no
// sidecar object is needed.
package object

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend"
	"github.com/thinktank/tieredcache/internal/keys"
	"github.com/thinktank/tieredcache/internal/serializer"
	"github.com/thinktank/tieredcache/internal/stats"
)

// MetaExpiresAt is the metadata key holding the expiry in Unix milliseconds.
const MetaExpiresAt = "expires-at"

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend[[]byte] = (*Backend[[]byte])(nil)

// Backend is a blob-store cache tier.
type Backend[V any] struct {
	bucket     Bucket
	prefix     string
	namespace  string
	serializer serializer.Serializer[V]
	logger     *zap.Logger
	collector  stats.Collector
	now        func() time.Time
}

// New creates an object backend over bucket.
func New[V any](bucket Bucket, namespace string, ser serializer.Serializer[V], opts ...Option) *Backend[V] {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &Backend[V]{
		bucket:     bucket,
		prefix:     cfg.prefix,
		namespace:  namespace,
		serializer: ser,
		logger:     cfg.logger.Named(bucket.Name()).With(zap.String("namespace", namespace)),
		collector:  cfg.collector,
		now:        cfg.now,
	}
	b.logger.Debug("object backend initialized", zap.String("prefix", b.dir()))
	return b
}

// Name returns the bucket's name (e.g., "s3").
func (b *Backend[V]) Name() string {
	return b.bucket.Name()
}

// Get fetches and decodes an entry. An expired entry is deleted.
func (b *Backend[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	objKey := b.Key(key)

	obj, err := b.bucket.Get(ctx, objKey)
	if errors.Is(err, ErrObjectNotFound) {
		return zero, false
	}
	if err != nil {
		b.fail("get", key, err)
		return zero, false
	}

	if expires, ok := parseExpiry(obj.Metadata); ok && backend.Expired(expires, b.now()) {
		if _, err := b.bucket.Delete(ctx, objKey); err != nil {
			b.fail("get", key, err)
		}
		return zero, false
	}

	v, err := b.serializer.Decode(obj.Data)
	if err != nil {
		b.fail("get", key, err)
		return zero, false
	}
	return v, true
}

// Set encodes and uploads an entry.
func (b *Backend[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	data, err := b.serializer.Encode(value)
	if err != nil {
		b.fail("set", key, err)
		return false
	}

	obj := Object{Data: data}
	if expires := backend.Expiry(b.now(), ttl); !expires.IsZero() {
		obj.Metadata = map[string]string{
			MetaExpiresAt: strconv.FormatInt(expires.UnixMilli(), 10),
		}
	}

	if err := b.bucket.Put(ctx, b.Key(key), obj); err != nil {
		b.fail("set", key, err)
		return false
	}
	return true
}

// Delete removes an entry and reports whether it existed.
func (b *Backend[V]) Delete(ctx context.Context, key string) bool {
	existed, err := b.bucket.Delete(ctx, b.Key(key))
	if err != nil {
		b.fail("delete", key, err)
		return false
	}
	return existed
}

// Clear removes every object under the namespace prefix.
func (b *Backend[V]) Clear(ctx context.Context) bool {
	names, err := b.bucket.List(ctx, b.dir())
	if err != nil {
		b.fail("clear", "", err)
		return false
	}
	ok := true
	for _, k := range names {
		if _, err := b.bucket.Delete(ctx, k); err != nil {
			b.fail("clear", k, err)
			ok = false
		}
	}
	return ok
}

// GetMany fetches each key in turn.
func (b *Backend[V]) GetMany(ctx context.Context, keys []string) map[string]V {
	return backend.GetManySequential[V](ctx, b, keys)
}

// SetMany uploads each item in turn.
func (b *Backend[V]) SetMany(ctx context.Context, items map[string]V, ttl time.Duration) bool {
	return backend.SetManySequential[V](ctx, b, items, ttl)
}

// Close closes the bucket.
func (b *Backend[V]) Close() error {
	return b.bucket.Close()
}

// Key returns the object key for a cache key.
func (b *Backend[V]) Key(key string) string {
	return b.dir() + keys.Digest(key) + "." + b.serializer.Extension()
}

func (b *Backend[V]) dir() string {
	return b.prefix + url.PathEscape(b.namespace) + "/"
}

func (b *Backend[V]) fail(op, key string, err error) {
	b.collector.IncCounter(stats.MetricBackendErrors, 1)
	b.logger.Warn("object operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

func parseExpiry(md map[string]string) (time.Time, bool) {
	raw, ok := md[MetaExpiresAt]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
