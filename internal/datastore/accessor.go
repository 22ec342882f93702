package datastore

import "github.com/bassista/go_datastore/internal/cache"

// Get returns the record under id, if any.
func (s *Store[ID, W, D, S]) Get(id ID) (D, bool) {
	return s.cache.Get(id)
}

// Set upserts v under id. The key is the index given, as with a map.
func (s *Store[ID, W, D, S]) Set(id ID, v D) {
	s.cache.Set(id, v)
}

// Unset removes id; it is Delete for a single identifier.
func (s *Store[ID, W, D, S]) Unset(id ID) {
	s.cache.Remove(id)
}

// Modify applies fn to the record under id and writes the result back under
// the same id, atomically. It reports false, without calling fn, when id is
// absent.
func (s *Store[ID, W, D, S]) Modify(id ID, fn func(*D)) bool {
	found := false
	s.cache.Batch(func(tx *cache.Tx[ID, D]) {
		v, ok := tx.Get(id)
		if !ok {
			return
		}
		found = true
		fn(&v)
		tx.Set(id, v)
	})
	return found
}

// GetOrDefault returns the record under id, or def. It never writes.
func (s *Store[ID, W, D, S]) GetOrDefault(id ID, def D) D {
	if v, ok := s.cache.Get(id); ok {
		return v
	}
	return def
}

// ModifyOrDefault applies fn to the record under id, or to def when id is
// absent, and upserts the result under the result's own identifier.
//
// That identifier can differ from id: modifying a missing "x" with a default
// whose ID is "d" stores under "d" and leaves "x" absent.
func (s *Store[ID, W, D, S]) ModifyOrDefault(id ID, def D, fn func(*D)) D {
	var out D
	s.cache.Batch(func(tx *cache.Tx[ID, D]) {
		v, ok := tx.Get(id)
		if !ok {
			v = def
		}
		fn(&v)
		tx.Set(v.RecordID(), v)
		out = v
	})
	return out
}
