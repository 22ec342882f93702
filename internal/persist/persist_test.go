package persist

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_datastore/internal/datastore"
	"github.com/bassista/go_datastore/internal/loader"
	"github.com/bassista/go_datastore/internal/profile"
	"github.com/bassista/go_datastore/internal/repository"
)

type profileStore = datastore.Store[string, profile.Wire, profile.Profile, profile.Stored]

func newStore(t *testing.T) *profileStore {
	t.Helper()
	s := datastore.New[string, profile.Wire, profile.Profile, profile.Stored](loader.Funcs[string, profile.Wire]{}, profile.FromWire)
	t.Cleanup(s.Close)
	return s
}

func alice() profile.Profile {
	return profile.Profile{ID: "1", UserName: "alice", Color: profile.Red, Kind: profile.KindWeirdCase}
}

// MockSaver is a mock implementation of repository.Saver.
type MockSaver struct {
	mock.Mock
	mu    sync.Mutex
	saved []repository.Document[profile.Stored]
}

func (m *MockSaver) Save(ctx context.Context, doc *repository.Document[profile.Stored]) error {
	args := m.Called(ctx, doc)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.saved = append(m.saved, *doc)
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockSaver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func TestMirror_TracksDirtyState(t *testing.T) {
	store := newStore(t)
	m := NewMirror[profile.Stored](store, 42)
	defer m.Close()

	assert.False(t, m.IsDirty())
	assert.Equal(t, int64(42), m.GetLastUpdate())

	require.NoError(t, store.Store(alice()))
	assert.True(t, m.IsDirty())
}

func TestMirror_NoOpWritesStayClean(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Store(alice()))
	m := NewMirror[profile.Stored](store, 0)
	defer m.Close()

	require.NoError(t, store.Store(alice()))
	require.NoError(t, store.Delete("missing"))

	assert.False(t, m.IsDirty())
}

func TestMirror_ReplaceIsNotDirty(t *testing.T) {
	store := newStore(t)
	m := NewMirror[profile.Stored](store, 0)
	defer m.Close()

	err := m.Replace(repository.Document[profile.Stored]{
		Metadata: repository.Metadata{LastUpdate: 77},
		Records:  []profile.Stored{alice().Stored()},
	})

	require.NoError(t, err)
	assert.False(t, m.IsDirty())
	assert.Equal(t, int64(77), m.GetLastUpdate())
	got, err := store.FetchOne("1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserName)
}

// racingStore runs during before delegating ReplaceStored and during after it.
type racingStore struct {
	*profileStore
	before func()
	after  func()
}

func (r *racingStore) ReplaceStored(records []profile.Stored) (int, error) {
	if r.before != nil {
		r.before()
	}
	changed, err := r.profileStore.ReplaceStored(records)
	if r.after != nil {
		r.after()
	}
	return changed, err
}

func bob() profile.Profile {
	b := alice()
	b.ID, b.UserName = "2", "bob"
	return b
}

func storeFromOtherGoroutine(t *testing.T, store *profileStore, p profile.Profile) {
	t.Helper()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.Store(p))
	}()
	wg.Wait()
}

func TestMirror_ConcurrentWriteDuringReplaceStaysDirty(t *testing.T) {
	store := newStore(t)
	wrapped := &racingStore{profileStore: store}
	wrapped.after = func() { storeFromOtherGoroutine(t, store, bob()) }
	m := NewMirror[profile.Stored](wrapped, 0)
	defer m.Close()

	err := m.Replace(repository.Document[profile.Stored]{
		Metadata: repository.Metadata{LastUpdate: 10},
		Records:  []profile.Stored{alice().Stored()},
	})

	require.NoError(t, err)
	_, err = store.FetchOne("2")
	require.NoError(t, err)
	assert.True(t, m.IsDirty(), "write made during a reload must be saved")

	saver := new(MockSaver)
	saver.On("Save", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, m.Flush(context.Background(), saver))
	require.Equal(t, 1, saver.count())
	assert.Len(t, saver.saved[0].Records, 2)
	assert.False(t, m.IsDirty())
}

func TestMirror_WriteBeforeReplaceBatchStaysDirty(t *testing.T) {
	store := newStore(t)
	wrapped := &racingStore{profileStore: store}
	wrapped.before = func() { storeFromOtherGoroutine(t, store, bob()) }
	m := NewMirror[profile.Stored](wrapped, 0)
	defer m.Close()

	err := m.Replace(repository.Document[profile.Stored]{
		Metadata: repository.Metadata{LastUpdate: 10},
		Records:  []profile.Stored{alice().Stored()},
	})

	require.NoError(t, err)
	// the reload replaced the whole content, bob included; the mirror still
	// has to write that result back
	assert.Equal(t, 1, store.Len())
	assert.True(t, m.IsDirty())
}

func TestMirror_ReplaceRefusedWhenDirty(t *testing.T) {
	store := newStore(t)
	m := NewMirror[profile.Stored](store, 0)
	defer m.Close()
	require.NoError(t, store.Store(bob()))

	err := m.Replace(repository.Document[profile.Stored]{
		Metadata: repository.Metadata{LastUpdate: 10},
		Records:  []profile.Stored{alice().Stored()},
	})

	assert.ErrorIs(t, err, repository.ErrCacheDirty)
	_, err = store.FetchOne("2")
	assert.NoError(t, err)
	assert.True(t, m.IsDirty())
	assert.Equal(t, int64(0), m.GetLastUpdate())
}

func TestMirror_ReplaceWithSameContentStaysClean(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Store(alice()))
	m := NewMirror[profile.Stored](store, 0)
	defer m.Close()

	err := m.Replace(repository.Document[profile.Stored]{
		Metadata: repository.Metadata{LastUpdate: 3},
		Records:  []profile.Stored{alice().Stored()},
	})

	require.NoError(t, err)
	assert.False(t, m.IsDirty())
	require.NoError(t, store.Store(bob()))
	assert.True(t, m.IsDirty())
}

func TestMirror_Snapshot(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Store(alice()))
	m := NewMirror[profile.Stored](store, 9)
	defer m.Close()

	doc, err := m.Snapshot()

	require.NoError(t, err)
	assert.Equal(t, int64(9), doc.Metadata.LastUpdate)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "#ff0000", doc.Records[0].Color)
}

func TestMirror_Flush(t *testing.T) {
	store := newStore(t)
	m := NewMirror[profile.Stored](store, 0)
	defer m.Close()
	saver := new(MockSaver)
	saver.On("Save", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, m.Flush(context.Background(), saver))
	assert.Equal(t, 0, saver.count(), "clean mirror must not save")

	require.NoError(t, store.Store(alice()))
	require.NoError(t, m.Flush(context.Background(), saver))

	assert.Equal(t, 1, saver.count())
	assert.False(t, m.IsDirty())
	assert.Positive(t, m.GetLastUpdate())
	assert.Equal(t, m.GetLastUpdate(), saver.saved[0].Metadata.LastUpdate)
}

func TestMirror_FlushFailureStaysDirty(t *testing.T) {
	store := newStore(t)
	m := NewMirror[profile.Stored](store, 5)
	defer m.Close()
	saver := new(MockSaver)
	saver.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	require.NoError(t, store.Store(alice()))
	err := m.Flush(context.Background(), saver)

	assert.Error(t, err)
	assert.True(t, m.IsDirty())
	assert.Equal(t, int64(5), m.GetLastUpdate())
}

func TestMirror_FlushCancelled(t *testing.T) {
	store := newStore(t)
	m := NewMirror[profile.Stored](store, 0)
	defer m.Close()
	saver := new(MockSaver)
	require.NoError(t, store.Store(alice()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Flush(ctx, saver), context.Canceled)
	saver.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.True(t, m.IsDirty())
}

func TestMirror_CloseStopsTracking(t *testing.T) {
	store := newStore(t)
	m := NewMirror[profile.Stored](store, 0)

	m.Close()
	require.NoError(t, store.Store(alice()))

	assert.False(t, m.IsDirty())
}

func TestStartScheduler_FlushesOnTickAndShutdown(t *testing.T) {
	store := newStore(t)
	m := NewMirror[profile.Stored](store, 0)
	defer m.Close()
	saver := new(MockSaver)
	saver.On("Save", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := StartScheduler(ctx, m, saver, 10*time.Millisecond)

	require.NoError(t, store.Store(alice()))
	require.Eventually(t, func() bool { return saver.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, store.Store(bob()))
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, m.IsDirty())
	assert.GreaterOrEqual(t, saver.count(), 2)
}

func TestStartScheduler_WithJSONRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	repo, err := repository.NewJSONRepository[profile.Stored](path)
	require.NoError(t, err)

	store := newStore(t)
	m := NewMirror[profile.Stored](store, 0)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := StartScheduler(ctx, m, repo, time.Hour)
	require.NoError(t, store.Store(alice()))
	cancel()
	<-done

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "alice", doc.Records[0].UserName)
	assert.Equal(t, m.GetLastUpdate(), doc.Metadata.LastUpdate)
}
