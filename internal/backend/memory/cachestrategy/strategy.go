// Package cachestrategy defines cache eviction strategy interfaces.
package cachestrategy

// Strategy orders the entries of an in-process tier for eviction.
// The owning backend serializes access, so implementations need not be
// safe for concurrent use on their own.
type Strategy[V any] interface {
	// Get returns the value for key. Whether the read refreshes the
	// entry's position is up to the strategy.
	Get(key string) (V, bool)
	// Add inserts or replaces key. Reports whether an entry was evicted.
	Add(key string, value V) bool
	// Remove deletes key and reports whether it was present.
	Remove(key string) bool
	// RemoveOldest deletes the next entry due for eviction.
	RemoveOldest() (string, bool)
	// Contains reports whether key is present without touching its position.
	Contains(key string) bool
	// Len returns the number of entries.
	Len() int
	// Purge removes every entry.
	Purge()
}
