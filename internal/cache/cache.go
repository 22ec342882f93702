// Package cache is an in-memory keyed store with a mutation signal.
//
// Every write happens under a single write lock. Batch applies any number of
// mutations under that lock and fires the change signal at most once, after
// the lock is released, so a subscriber never observes a half-applied batch.
package cache

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/containerd/errdefs"

	"github.com/bassista/go_datastore/internal/notify"
	"github.com/bassista/go_datastore/internal/record"
)

// ErrNotFound is returned by Resolve for an absent identifier.
// errdefs.IsNotFound reports true for it.
var ErrNotFound = fmt.Errorf("record %w", errdefs.ErrNotFound)

// Option configures a Cache.
type Option[V any] func(*options[V])

type options[V any] struct {
	equal func(a, b V) bool
}

// WithEqual replaces the equality used to detect no-op writes.
// The default is reflect.DeepEqual.
func WithEqual[V any](equal func(a, b V) bool) Option[V] {
	return func(o *options[V]) {
		if equal != nil {
			o.equal = equal
		}
	}
}

// Cache maps identifiers to values, one value per identifier, last write wins.
// Values implementing record.Cloner are copied on the way in and out.
type Cache[ID comparable, V any] struct {
	mu      sync.RWMutex
	entries map[ID]V
	equal   func(a, b V) bool
	changes *notify.Signal
}

// New creates a cache seeded with initial. Seeding does not fire the signal.
func New[ID comparable, V any](initial map[ID]V, opts ...Option[V]) *Cache[ID, V] {
	o := options[V]{equal: func(a, b V) bool { return reflect.DeepEqual(a, b) }}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	entries := make(map[ID]V, len(initial))
	for id, v := range initial {
		entries[id] = record.Clone(v)
	}

	return &Cache[ID, V]{
		entries: entries,
		equal:   o.equal,
		changes: notify.NewSignal(),
	}
}

// Changes is fired once for every Batch (or single write) that changed at
// least one entry.
func (c *Cache[ID, V]) Changes() *notify.Signal {
	return c.changes
}

// Get returns the value stored under id.
func (c *Cache[ID, V]) Get(id ID) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	if !ok {
		var zero V
		return zero, false
	}
	return record.Clone(v), true
}

// Resolve is Get that fails with ErrNotFound.
func (c *Cache[ID, V]) Resolve(id ID) (V, error) {
	v, ok := c.Get(id)
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	return v, nil
}

// Set stores v under id. It reports whether the cache changed.
func (c *Cache[ID, V]) Set(id ID, v V) bool {
	return c.Batch(func(tx *Tx[ID, V]) { tx.Set(id, v) }) > 0
}

// Remove deletes id. It reports whether the entry existed.
func (c *Cache[ID, V]) Remove(id ID) bool {
	return c.Batch(func(tx *Tx[ID, V]) { tx.Remove(id) }) > 0
}

// All returns a copy of the whole mapping.
func (c *Cache[ID, V]) All() map[ID]V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[ID]V, len(c.entries))
	for id, v := range c.entries {
		out[id] = record.Clone(v)
	}
	return out
}

// Values returns a copy of every value. Order is unspecified.
func (c *Cache[ID, V]) Values() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]V, 0, len(c.entries))
	for _, v := range c.entries {
		out = append(out, record.Clone(v))
	}
	return out
}

// Len returns the number of entries.
func (c *Cache[ID, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Batch runs fn with exclusive write access and returns the number of
// entries it changed. The change signal fires once if that number is
// non-zero. fn must not call back into the cache outside tx.
func (c *Cache[ID, V]) Batch(fn func(tx *Tx[ID, V])) int {
	tx := &Tx[ID, V]{c: c}
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		fn(tx)
	}()
	tx.closed = true

	if tx.changed > 0 {
		c.changes.Notify()
	}
	return tx.changed
}
