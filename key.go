package tieredcache

import "github.com/thinktank/tieredcache/internal/keys"

// NamedArg is a keyword argument for CacheKey.
type NamedArg = keys.NamedArg

// Named wraps value as a keyword argument. Keyword arguments contribute to
// a key independently of the order they are passed in.
func Named(name string, value any) NamedArg {
	return keys.Named(name, value)
}

// CacheKey derives a stable key from args. Positional arguments are
// rendered with %v in order, keyword arguments sorted by name as
// "name=value"; the parts are joined with ":" and hashed with SHA-256.
func CacheKey(args ...any) string {
	return keys.Build(args...)
}
