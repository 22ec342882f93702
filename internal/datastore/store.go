// Package datastore orchestrates an in-memory cache of device records, the
// loader that feeds it and the observers watching it.
//
// Every mutation, including the merge phase of a load, runs as a single
// cache batch under the cache's write lock. Subscribers receive exactly one
// signal per call that changed at least one entry and none for no-ops.
package datastore

import (
	"github.com/bassista/go_datastore/internal/adapter"
	"github.com/bassista/go_datastore/internal/cache"
	"github.com/bassista/go_datastore/internal/loader"
	"github.com/bassista/go_datastore/internal/logger"
	"github.com/bassista/go_datastore/internal/notify"
	"github.com/bassista/go_datastore/internal/record"
)

// ErrNotFound is returned by FetchOne for an absent identifier.
var ErrNotFound = cache.ErrNotFound

// Option configures a Store.
type Option[ID comparable, D any] func(*options[ID, D])

type options[ID comparable, D any] struct {
	initial map[ID]D
	equal   func(a, b D) bool
}

// WithInitialValues seeds the cache. Seeding does not notify subscribers.
func WithInitialValues[ID comparable, D any](values map[ID]D) Option[ID, D] {
	return func(o *options[ID, D]) {
		o.initial = values
	}
}

// WithEqual sets the equality used to recognise writes that change nothing.
func WithEqual[ID comparable, D any](equal func(a, b D) bool) Option[ID, D] {
	return func(o *options[ID, D]) {
		o.equal = equal
	}
}

// Store owns one cache of device records D keyed by ID and one loader of
// wire records W. S is the storable form paired with D.
type Store[ID comparable, W any, D record.Device[ID, S], S record.Storable[ID, D]] struct {
	cache   *cache.Cache[ID, D]
	loader  *loader.Adapted[ID, W, D]
	codec   record.Codec[ID, D, S]
	changes *notify.Signal
	forward *notify.Subscription
}

// New creates a store reading through source, adapting wire records with
// fromWire.
func New[ID comparable, W any, D record.Device[ID, S], S record.Storable[ID, D]](
	source loader.Loader[ID, W],
	fromWire adapter.Adapter[W, D],
	opts ...Option[ID, D],
) *Store[ID, W, D, S] {
	var o options[ID, D]
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var cacheOpts []cache.Option[D]
	if o.equal != nil {
		cacheOpts = append(cacheOpts, cache.WithEqual(o.equal))
	}

	s := &Store[ID, W, D, S]{
		cache:   cache.New[ID, D](o.initial, cacheOpts...),
		loader:  loader.Adapt(source, fromWire),
		changes: notify.NewSignal(),
	}
	s.forward = notify.Forward(s.cache.Changes(), s.changes)
	return s
}

// Loader returns the device-typed loader the store reads through.
func (s *Store[ID, W, D, S]) Loader() *loader.Adapted[ID, W, D] {
	return s.loader
}

// Codec returns the converter between D and S.
func (s *Store[ID, W, D, S]) Codec() record.Codec[ID, D, S] {
	return s.codec
}

// Subscribe registers fn to run once per mutating call.
func (s *Store[ID, W, D, S]) Subscribe(fn func()) *notify.Subscription {
	return s.changes.Subscribe(fn)
}

// Changes exposes the forwarded signal, for sinks that attach to a Signal.
func (s *Store[ID, W, D, S]) Changes() *notify.Signal {
	return s.changes
}

// Close stops forwarding cache signals. The store stays readable.
func (s *Store[ID, W, D, S]) Close() {
	s.forward.Cancel()
}

// Store upserts every record under its own identifier. Overwrites replace
// the whole record. An empty call does nothing.
//
// The in-memory cache cannot fail; the error return is kept for fallible
// backing stores.
func (s *Store[ID, W, D, S]) Store(records ...D) error {
	if len(records) == 0 {
		return nil
	}
	changed := s.cache.Batch(func(tx *cache.Tx[ID, D]) {
		for _, r := range records {
			tx.Set(r.RecordID(), r)
		}
	})
	logger.WithComponent("store").Tracef("stored %d records, %d changed", len(records), changed)
	return nil
}

// Delete removes every listed identifier. Absent identifiers are ignored.
func (s *Store[ID, W, D, S]) Delete(ids ...ID) error {
	if len(ids) == 0 {
		return nil
	}
	changed := s.cache.Batch(func(tx *cache.Tx[ID, D]) {
		for _, id := range ids {
			tx.Remove(id)
		}
	})
	logger.WithComponent("store").Tracef("deleted %d of %d ids", changed, len(ids))
	return nil
}

// Replace makes records the entire content of the store in one batch and
// returns the number of entries it changed. The change signal fires once,
// on the calling goroutine, when that number is non-zero.
func (s *Store[ID, W, D, S]) Replace(records ...D) (int, error) {
	keep := make(map[ID]struct{}, len(records))
	for _, r := range records {
		keep[r.RecordID()] = struct{}{}
	}
	changed := s.cache.Batch(func(tx *cache.Tx[ID, D]) {
		for _, id := range tx.Keys() {
			if _, ok := keep[id]; !ok {
				tx.Remove(id)
			}
		}
		for _, r := range records {
			tx.Set(r.RecordID(), r)
		}
	})
	logger.WithComponent("store").Debugf("replaced content with %d records, %d changed", len(records), changed)
	return changed, nil
}

// ReplaceStored is Replace for persisted records.
func (s *Store[ID, W, D, S]) ReplaceStored(records []S) (int, error) {
	return s.Replace(s.codec.FromStoredAll(records)...)
}

// FetchAll returns every record. The order is unspecified and may differ
// between calls.
func (s *Store[ID, W, D, S]) FetchAll() []D {
	return s.cache.Values()
}

// FetchWhere returns the records matching pred. A nil pred matches all.
func (s *Store[ID, W, D, S]) FetchWhere(pred func(D) bool) []D {
	all := s.FetchAll()
	if pred == nil {
		return all
	}
	out := make([]D, 0, len(all))
	for _, r := range all {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// FetchOne returns the record stored under id or an error matching
// ErrNotFound.
func (s *Store[ID, W, D, S]) FetchOne(id ID) (D, error) {
	return s.cache.Resolve(id)
}

// Stored projects a snapshot of the store to its persisted form.
func (s *Store[ID, W, D, S]) Stored() []S {
	return s.codec.ToStoredAll(s.FetchAll())
}

// Len returns the number of cached records.
func (s *Store[ID, W, D, S]) Len() int {
	return s.cache.Len()
}
