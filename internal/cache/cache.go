// Package cache holds expensive derived values (graphs, assembled context)
// keyed by the fingerprint of the repository snapshot they came from.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the number of entries kept when no size is configured.
const DefaultSize = 64

// Cache is a bounded, least-recently-used map from fingerprint to V.
// Concurrent builds for the same fingerprint run once; build errors are not
// cached. It is safe for concurrent use.
type Cache[V any] struct {
	entries *lru.Cache[string, V]
	group   singleflight.Group
}

// New returns a cache holding at most size entries. A non-positive size
// uses DefaultSize.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Cache[V]{entries: entries}, nil
}

// Get returns the cached value for fingerprint.
func (c *Cache[V]) Get(fingerprint string) (V, bool) {
	return c.entries.Get(fingerprint)
}

// Add stores v under fingerprint.
func (c *Cache[V]) Add(fingerprint string, v V) {
	c.entries.Add(fingerprint, v)
}

// GetOrBuild returns the cached value for fingerprint, calling build to
// produce and cache it on a miss.
func (c *Cache[V]) GetOrBuild(fingerprint string, build func() (V, error)) (V, error) {
	if v, ok := c.entries.Get(fingerprint); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(fingerprint, func() (any, error) {
		if v, ok := c.entries.Get(fingerprint); ok {
			return v, nil
		}
		v, err := build()
		if err != nil {
			return nil, err
		}
		c.entries.Add(fingerprint, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Evict drops the entry for fingerprint and reports whether it was present.
func (c *Cache[V]) Evict(fingerprint string) bool {
	return c.entries.Remove(fingerprint)
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}
