package repository

import "context"

// Saver persists a Document.
// Small interface used by background jobs like the persistence scheduler.
type Saver[S any] interface {
	Save(ctx context.Context, doc *Document[S]) error
}

// Repository abstracts persistence of a store's records.
// JSONRepository, BoltRepository and SQLiteRepository implement it.
type Repository[S any] interface {
	Saver[S]
	Load(ctx context.Context) (*Document[S], error)
	Close() error
}

// Watcher is implemented by repositories that can notice external edits.
type Watcher[S any] interface {
	StartWatcher(ctx context.Context, cacheStore CacheStore[S]) error
}

// CacheStore defines the cache operations needed by the watcher callback.
type CacheStore[S any] interface {
	GetLastUpdate() int64
	IsDirty() bool
	Snapshot() (Document[S], error)
	Replace(doc Document[S]) error
}
