// Package lru implements cache eviction strategies on top of an LRU list.
package lru

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/thinktank/tieredcache/internal/backend/memory/cachestrategy"
)

// Compile-time check that Strategy implements cachestrategy.Strategy.
var _ cachestrategy.Strategy[[]byte] = (*Strategy[[]byte])(nil)

// Policy selects which entry is evicted first.
type Policy int

const (
	// PolicyInsertion evicts the oldest-written entry. Reads never change
	// the eviction order.
	PolicyInsertion Policy = iota
	// PolicyRecency evicts the least recently read or written entry.
	PolicyRecency
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyInsertion:
		return "insertion"
	case PolicyRecency:
		return "recency"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy returns the policy for a configuration name.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "insertion", "fifo":
		return PolicyInsertion, nil
	case "recency", "lru":
		return PolicyRecency, nil
	default:
		return 0, fmt.Errorf("lru: unknown policy %q", name)
	}
}

// Strategy implements eviction with a fixed-capacity LRU list.
type Strategy[V any] struct {
	cache  *lru.Cache[string, V]
	policy Policy
}

// New creates a new strategy with the given capacity and policy.
func New[V any](capacity int, policy Policy) (*Strategy[V], error) {
	c, err := lru.New[string, V](capacity)
	if err != nil {
		return nil, err
	}
	return &Strategy[V]{cache: c, policy: policy}, nil
}

// Policy returns the eviction policy.
func (s *Strategy[V]) Policy() Policy {
	return s.policy
}

// Get retrieves a value by key. Only PolicyRecency refreshes the entry.
func (s *Strategy[V]) Get(key string) (V, bool) {
	if s.policy == PolicyRecency {
		return s.cache.Get(key)
	}
	return s.cache.Peek(key)
}

// Add adds a value to the cache.
func (s *Strategy[V]) Add(key string, value V) bool {
	return s.cache.Add(key, value)
}

// Remove deletes key.
func (s *Strategy[V]) Remove(key string) bool {
	return s.cache.Remove(key)
}

// RemoveOldest deletes the entry at the back of the list.
func (s *Strategy[V]) RemoveOldest() (string, bool) {
	key, _, ok := s.cache.RemoveOldest()
	return key, ok
}

// Contains reports whether key is present.
func (s *Strategy[V]) Contains(key string) bool {
	return s.cache.Contains(key)
}

// Len returns the number of items in the cache.
func (s *Strategy[V]) Len() int {
	return s.cache.Len()
}

// Purge removes every entry.
func (s *Strategy[V]) Purge() {
	s.cache.Purge()
}
