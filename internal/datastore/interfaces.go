package datastore

import "github.com/bassista/go_datastore/internal/notify"

// ReadOnlyStore is the minimal store API for query-only consumers.
type ReadOnlyStore[ID comparable, D any] interface {
	FetchAll() []D
	FetchWhere(pred func(D) bool) []D
	FetchOne(id ID) (D, error)
}

// PersistableStore is the store API needed by the persistence bridge.
// ReplaceStored reports how many entries it changed; a non-zero count means
// it fired exactly one change signal before returning.
type PersistableStore[S any] interface {
	Stored() []S
	ReplaceStored(records []S) (int, error)
	Subscribe(fn func()) *notify.Subscription
}
