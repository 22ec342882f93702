// Package persist keeps a store and a repository in step: it tracks unsaved
// changes and flushes them on a schedule.
package persist

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassista/go_datastore/internal/datastore"
	"github.com/bassista/go_datastore/internal/logger"
	"github.com/bassista/go_datastore/internal/notify"
	"github.com/bassista/go_datastore/internal/repository"
)

// Mirror watches a store for changes and exposes it to the repository layer
// as a CacheStore. The change applied by Replace does not make it dirty;
// writes from other callers always do.
type Mirror[S any] struct {
	store datastore.PersistableStore[S]
	sub   *notify.Subscription

	// mu serialises Flush and Replace, the two writers of saved.
	mu         sync.Mutex
	version    atomic.Uint64
	saved      atomic.Uint64
	lastUpdate atomic.Int64
}

// NewMirror starts tracking store. lastUpdate is the version of the data the
// store was filled from, usually the loaded document's metadata.
func NewMirror[S any](store datastore.PersistableStore[S], lastUpdate int64) *Mirror[S] {
	m := &Mirror[S]{store: store}
	m.lastUpdate.Store(lastUpdate)
	m.sub = store.Subscribe(m.onChange)
	return m
}

func (m *Mirror[S]) onChange() {
	m.version.Add(1)
}

// IsDirty reports whether the store changed since the last save or reload.
func (m *Mirror[S]) IsDirty() bool {
	return m.version.Load() != m.saved.Load()
}

// GetLastUpdate returns the version of the last save or reload.
func (m *Mirror[S]) GetLastUpdate() int64 {
	return m.lastUpdate.Load()
}

// Snapshot projects the store to a document stamped with GetLastUpdate.
func (m *Mirror[S]) Snapshot() (repository.Document[S], error) {
	doc := repository.Document[S]{
		Metadata: repository.Metadata{LastUpdate: m.GetLastUpdate()},
		Records:  m.store.Stored(),
	}
	doc.ApplyDefaults()
	return doc, nil
}

// Replace makes doc the store's content without marking it dirty. It fails
// with repository.ErrCacheDirty when the store has unsaved changes.
func (m *Mirror[S]) Replace(doc repository.Document[S]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsDirty() {
		return repository.ErrCacheDirty
	}
	changed, err := m.store.ReplaceStored(doc.Records)
	if err != nil {
		return fmt.Errorf("replace store content: %w", err)
	}
	// A changing ReplaceStored fired exactly one signal; account for that
	// one only, so concurrent writes stay dirty.
	if changed > 0 {
		m.saved.Add(1)
	}
	m.lastUpdate.Store(doc.Metadata.LastUpdate)
	return nil
}

// Flush saves the store if it is dirty. Changes made while saving keep the
// mirror dirty for the next flush.
func (m *Mirror[S]) Flush(ctx context.Context, repo repository.Saver[S]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.IsDirty() {
		logger.WithComponent("persist").Tracef("cache is clean, skipping flush")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	version := m.version.Load()
	snapshot, err := m.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	snapshot.Metadata.LastUpdate = time.Now().UnixMilli()

	if err := repo.Save(ctx, &snapshot); err != nil {
		return err
	}

	m.saved.Store(version)
	m.lastUpdate.Store(snapshot.Metadata.LastUpdate)
	logger.WithComponent("persist").Infof("cache persisted (%d records)", len(snapshot.Records))
	return nil
}

// Close stops tracking changes.
func (m *Mirror[S]) Close() {
	m.sub.Cancel()
}

var _ repository.CacheStore[struct{}] = (*Mirror[struct{}])(nil)
