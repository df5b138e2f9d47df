// Package plancache provides the per-type memo used for reconstruction plans
// and type descriptors.
//
// Entries are computed at most once per type under normal operation, never
// invalidated, and published with first-stored-wins semantics: once a reader
// observes an entry for a type, every later reader observes the same one.
package plancache

import (
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is a thread-safe map from reflect.Type to V.
type Cache[V any] struct {
	mu       sync.RWMutex
	items    map[reflect.Type]V
	group    singleflight.Group
	collapse bool
	metrics  *Metrics
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	collapse bool
	metrics  *Metrics
}

// WithMetrics records hits, misses and stores in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCollapse toggles collapsing of concurrent misses for one type into a
// single computation. Enabled by default.
func WithCollapse(enabled bool) Option {
	return func(o *options) { o.collapse = enabled }
}

// New creates a new empty Cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{collapse: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		items:    make(map[reflect.Type]V),
		collapse: o.collapse,
		metrics:  o.metrics,
	}
}

// Get retrieves the entry for t. Returns the value and true if found.
func (c *Cache[V]) Get(t reflect.Type) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.items[t]
	return value, ok
}

// Store publishes value for t unless an entry already exists, and returns
// the entry that is now visible to readers.
func (c *Cache[V]) Store(t reflect.Type, value V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.items[t]; ok {
		return existing
	}
	c.items[t] = value
	c.metrics.stored(len(c.items))
	return value
}

type computed[V any] struct {
	t     reflect.Type
	value V
}

// GetOrCompute returns the entry for t, computing and storing it on a miss.
// Errors are returned to the caller and never cached.
func (c *Cache[V]) GetOrCompute(t reflect.Type, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(t); ok {
		c.metrics.hit()
		return value, nil
	}
	c.metrics.miss()

	if !c.collapse {
		return c.computeAndStore(t, compute)
	}

	// Type strings are not unique across packages, so the flight result
	// carries its type and a mismatch falls back to a direct computation.
	res, err, _ := c.group.Do(t.String(), func() (any, error) {
		value, err := c.computeAndStore(t, compute)
		return computed[V]{t: t, value: value}, err
	})
	if r, ok := res.(computed[V]); ok && r.t == t {
		return r.value, err
	}
	return c.computeAndStore(t, compute)
}

func (c *Cache[V]) computeAndStore(t reflect.Type, compute func() (V, error)) (V, error) {
	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	return c.Store(t, value), nil
}

// Has returns true if an entry exists for t.
func (c *Cache[V]) Has(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[t]
	return ok
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Range calls fn for each entry until fn returns false.
func (c *Cache[V]) Range(fn func(reflect.Type, V) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for t, v := range c.items {
		if !fn(t, v) {
			return
		}
	}
}
