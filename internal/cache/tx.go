package cache

import "github.com/bassista/go_datastore/internal/record"

// Tx is the write handle passed to Batch. It is only valid inside the
// callback.
type Tx[ID comparable, V any] struct {
	c       *Cache[ID, V]
	changed int
	closed  bool
}

func (tx *Tx[ID, V]) check() {
	if tx.closed {
		panic("cache: Tx used outside of Batch")
	}
}

// Get reads through the batch, seeing its earlier writes.
func (tx *Tx[ID, V]) Get(id ID) (V, bool) {
	tx.check()
	v, ok := tx.c.entries[id]
	if !ok {
		return v, false
	}
	return record.Clone(v), true
}

// Set upserts v under id. Writing a value equal to the resident one is not
// a change.
func (tx *Tx[ID, V]) Set(id ID, v V) bool {
	tx.check()
	if cur, ok := tx.c.entries[id]; ok && tx.c.equal(cur, v) {
		return false
	}
	tx.c.entries[id] = record.Clone(v)
	tx.changed++
	return true
}

// Remove deletes id if present.
func (tx *Tx[ID, V]) Remove(id ID) bool {
	tx.check()
	if _, ok := tx.c.entries[id]; !ok {
		return false
	}
	delete(tx.c.entries, id)
	tx.changed++
	return true
}

// Keys lists the identifiers currently held, in no particular order.
func (tx *Tx[ID, V]) Keys() []ID {
	tx.check()
	keys := make([]ID, 0, len(tx.c.entries))
	for id := range tx.c.entries {
		keys = append(keys, id)
	}
	return keys
}

// Changed returns the number of entries changed so far.
func (tx *Tx[ID, V]) Changed() int {
	return tx.changed
}
