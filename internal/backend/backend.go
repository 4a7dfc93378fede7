// Package backend defines the contract shared by every cache tier.
//
// A Backend never reports ordinary failures to its caller. Transport and
// serialization errors are logged by the implementation and surface as a
// miss (Get) or false (Set, Delete, Clear). Only construction can fail,
// with an error wrapping ErrUnavailable.
package backend

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable indicates a backend could not be reached at construction.
var ErrUnavailable = errors.New("backend: unavailable")

// Backend is a single cache tier scoped to one namespace.
// Implementations must be safe for concurrent use.
type Backend[V any] interface {
	// Name identifies the tier in logs and metrics (e.g., "memory").
	Name() string

	// Get returns the value stored under key. Expired entries are absent.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores value under key. A ttl <= 0 stores without expiry.
	// Reports whether this backend recorded the write.
	Set(ctx context.Context, key string, value V, ttl time.Duration) bool

	// Delete removes key and reports whether the backend acted on it.
	Delete(ctx context.Context, key string) bool

	// Clear removes every entry in this backend's namespace.
	Clear(ctx context.Context) bool

	// GetMany returns the entries found for keys. Missing keys are omitted.
	GetMany(ctx context.Context, keys []string) map[string]V

	// SetMany stores every item with the same ttl.
	SetMany(ctx context.Context, items map[string]V, ttl time.Duration) bool

	// Close releases resources held by the backend.
	Close() error
}

// Separator ends the namespace part of a physical key.
const Separator = ":"

var namespaceEscaper = strings.NewReplacer(`\`, `\\`, Separator, `\`+Separator)

// Prefix returns the leading part shared by every physical key in
// namespace. Separators inside the namespace are escaped, so the prefix of
// one namespace never starts the prefix of another ("app:" vs "app\:v2:").
func Prefix(namespace string) string {
	return namespaceEscaper.Replace(namespace) + Separator
}

// Key returns the physical key for key in namespace.
func Key(namespace, key string) string {
	return Prefix(namespace) + key
}

// GetManySequential implements GetMany with one Get per key.
func GetManySequential[V any](ctx context.Context, b Backend[V], keys []string) map[string]V {
	out := make(map[string]V, len(keys))
	for _, key := range keys {
		if v, ok := b.Get(ctx, key); ok {
			out[key] = v
		}
	}
	return out
}

// SetManySequential implements SetMany with one Set per item.
// It reports true only if every item was stored.
func SetManySequential[V any](ctx context.Context, b Backend[V], items map[string]V, ttl time.Duration) bool {
	ok := true
	for key, v := range items {
		if !b.Set(ctx, key, v, ttl) {
			ok = false
		}
	}
	return ok
}

// Expiry returns the absolute expiry for ttl relative to now.
// The zero time means no expiry.
func Expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Expired reports whether expires is set and not after now.
func Expired(expires, now time.Time) bool {
	return !expires.IsZero() && !now.Before(expires)
}
