// Package disk implements the durable cache tier on the local filesystem.
//
// Each namespace owns a directory. An entry is stored as one data file named
// by the SHA-256 of its key plus the serializer extension. Entries written
// with a TTL get a JSON sidecar "<data file>.meta" holding the absolute
// expiry, checked before the data file is read. Writes go through a
// temporary file and a rename, so concurrent writers never leave a torn
// file behind; the last rename wins. Within one process, writes and expiry
// purges are serialized so a reader never deletes an entry rewritten after
// it saw the old sidecar.
package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend"
	"github.com/thinktank/tieredcache/internal/keys"
	"github.com/thinktank/tieredcache/internal/serializer"
	"github.com/thinktank/tieredcache/internal/stats"
)

// MetaSuffix is appended to a data file path to form its sidecar path.
const MetaSuffix = ".meta"

// tempPrefix marks in-flight writes.
const tempPrefix = ".tmp-"

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend[[]byte] = (*Backend[[]byte])(nil)

// Meta is the sidecar record for an entry written with a TTL.
// Times are Unix seconds.
type Meta struct {
	Expires float64 `json:"expires"`
	Created float64 `json:"created"`
}

// ExpiresAt returns the expiry instant. The zero time means no expiry.
func (m Meta) ExpiresAt() time.Time {
	if m.Expires == 0 {
		return time.Time{}
	}
	return unixFloat(m.Expires)
}

// Backend is a filesystem cache tier.
type Backend[V any] struct {
	dir        string
	namespace  string
	serializer serializer.Serializer[V]
	logger     *zap.Logger
	collector  stats.Collector
	now        func() time.Time

	// mu guards file writes and removals, not reads.
	mu sync.Mutex
}

// New creates a disk backend storing entries under dir/namespace.
// The namespace directory is created if needed.
func New[V any](dir, namespace string, ser serializer.Serializer[V], opts ...Option) (*Backend[V], error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	nsDir := filepath.Join(dir, namespace)
	if err := os.MkdirAll(nsDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", backend.ErrUnavailable, nsDir, err)
	}

	b := &Backend[V]{
		dir:        nsDir,
		namespace:  namespace,
		serializer: ser,
		logger:     cfg.logger.Named("disk").With(zap.String("namespace", namespace)),
		collector:  cfg.collector,
		now:        cfg.now,
	}
	b.logger.Debug("disk backend initialized",
		zap.String("dir", nsDir),
		zap.String("extension", ser.Extension()),
	)
	return b, nil
}

// Name returns "disk".
func (b *Backend[V]) Name() string {
	return "disk"
}

// Dir returns the namespace directory.
func (b *Backend[V]) Dir() string {
	return b.dir
}

// Get reads and decodes an entry. An expired entry is deleted.
func (b *Backend[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	// Check for cancellation before starting I/O.
	select {
	case <-ctx.Done():
		return zero, false
	default:
	}

	path := b.Path(key)

	meta, err := readMeta(path + MetaSuffix)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		b.fail("get", key, err)
		return zero, false
	case backend.Expired(meta.ExpiresAt(), b.now()):
		if _, err := b.purgeExpired(path); err != nil {
			b.fail("get", key, err)
		}
		return zero, false
	}

	v, err := b.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			b.fail("get", key, err)
		}
		return zero, false
	}
	return v, true
}

// Set encodes and writes an entry. A positive ttl writes the sidecar;
// otherwise any stale sidecar is removed.
func (b *Backend[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	data, err := b.serializer.Encode(value)
	if err != nil {
		b.fail("set", key, err)
		return false
	}

	// The sidecar goes first: a reader that finds an old expired sidecar
	// next to the new data file would delete the fresh entry.
	path := b.Path(key)
	metaPath := path + MetaSuffix

	b.mu.Lock()
	defer b.mu.Unlock()
	if ttl <= 0 {
		if err := os.Remove(metaPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			b.fail("set", key, err)
			return false
		}
	} else {
		now := b.now()
		meta, err := json.Marshal(Meta{
			Expires: unixSeconds(now.Add(ttl)),
			Created: unixSeconds(now),
		})
		if err != nil {
			b.fail("set", key, err)
			return false
		}
		if err := writeFileAtomic(metaPath, meta); err != nil {
			b.fail("set", key, err)
			return false
		}
	}

	if err := writeFileAtomic(path, data); err != nil {
		b.fail("set", key, err)
		return false
	}
	return true
}

// Delete removes an entry and its sidecar and reports whether a data file
// was there. Absent files are not an error.
func (b *Backend[V]) Delete(_ context.Context, key string) bool {
	b.mu.Lock()
	removed, err := b.remove(b.Path(key))
	b.mu.Unlock()
	if err != nil {
		b.fail("delete", key, err)
		return false
	}
	return removed
}

// Clear removes every file in the namespace directory, keeping the
// directory itself.
func (b *Backend[V]) Clear(_ context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		b.fail("clear", "", err)
		return false
	}

	ok := true
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			b.fail("clear", e.Name(), err)
			ok = false
		}
	}
	return ok
}

// GetMany reads each key in turn.
func (b *Backend[V]) GetMany(ctx context.Context, keys []string) map[string]V {
	return backend.GetManySequential[V](ctx, b, keys)
}

// SetMany writes each item in turn.
func (b *Backend[V]) SetMany(ctx context.Context, items map[string]V, ttl time.Duration) bool {
	return backend.SetManySequential[V](ctx, b, items, ttl)
}

// Close is a no-op.
func (b *Backend[V]) Close() error {
	return nil
}

// Path returns the data file path for key.
func (b *Backend[V]) Path(key string) string {
	return filepath.Join(b.dir, keys.Digest(key)+"."+b.serializer.Extension())
}

// Load reads and decodes the data file at path.
func (b *Backend[V]) Load(path string) (V, error) {
	var zero V
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}
	return b.serializer.Decode(data)
}

// purgeExpired removes the entry at path if its sidecar still says it has
// expired. A concurrent Set may have replaced it since the caller looked.
func (b *Backend[V]) purgeExpired(path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	meta, err := readMeta(path + MetaSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !backend.Expired(meta.ExpiresAt(), b.now()) {
		return false, nil
	}
	return b.remove(path)
}

// remove deletes a data file and its sidecar. It reports whether the data
// file existed. Callers hold mu.
func (b *Backend[V]) remove(path string) (bool, error) {
	var errs []error
	removed := false
	for i, p := range []string{path, path + MetaSuffix} {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed = removed || i == 0
		case !errors.Is(err, fs.ErrNotExist):
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

func (b *Backend[V]) fail(op, key string, err error) {
	b.collector.IncCounter(stats.MetricBackendErrors, 1)
	b.logger.Warn("disk operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

// readMeta parses a sidecar file.
func readMeta(path string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, tempPrefix+name+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func unixFloat(secs float64) time.Time {
	return time.Unix(0, int64(secs*float64(time.Second)))
}
