package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"

	"github.com/bassista/go_datastore/internal/logger"
)

const (
	backendJSON      = "json"
	watcherDebounce  = 200 * time.Millisecond
	jsonComponentTag = "json-repo"
)

// JSONRepository handles disk persistence and watching of a JSON data file.
type JSONRepository[S any] struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	mu        sync.Mutex
}

// NewJSONRepository creates a repository for the given JSON file path.
func NewJSONRepository[S any](path string) (*JSONRepository[S], error) {
	if path == "" {
		return nil, errors.New("data file path is required")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" || dir == "." {
		dir = "."
	}

	return &JSONRepository[S]{path: path, dir: dir, base: base, validator: validator.New()}, nil
}

// Path returns the data file path.
func (r *JSONRepository[S]) Path() string {
	return r.path
}

// Load reads the JSON file, parses and validates it. A missing file yields
// an empty document.
func (r *JSONRepository[S]) Load(ctx context.Context) (*Document[S], error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(backendJSON, "load", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.loadUnlocked()
	return doc, storeErr(backendJSON, "load", err)
}

// loadUnlocked reads the JSON file without acquiring the lock (caller must hold it).
func (r *JSONRepository[S]) loadUnlocked() (*Document[S], error) {
	file, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.WithComponent(jsonComponentTag).Debugf("data file %s does not exist yet, starting empty", r.path)
		doc := &Document[S]{}
		doc.ApplyDefaults()
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	var doc Document[S]
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}

	doc.ApplyDefaults()

	if err := r.validator.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate data file: %w", err)
	}

	return &doc, nil
}

// Save validates and writes the document atomically to disk.
func (r *JSONRepository[S]) Save(ctx context.Context, doc *Document[S]) error {
	if doc == nil {
		return storeErr(backendJSON, "save", errors.New("document is nil"))
	}
	if err := ctx.Err(); err != nil {
		return storeErr(backendJSON, "save", err)
	}
	if err := r.validator.Struct(doc); err != nil {
		return storeErr(backendJSON, "save", fmt.Errorf("validate before save: %w", err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return storeErr(backendJSON, "save", r.saveUnlocked(doc))
}

// saveUnlocked writes the document without acquiring the lock (caller must hold it).
func (r *JSONRepository[S]) saveUnlocked(doc *Document[S]) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.dir, r.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), r.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}

	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (r *JSONRepository[S]) Close() error {
	return nil
}

// StartWatcher listens for changes to the data file and reloads cacheStore
// after a debounce. It watches the parent directory, not the file, so atomic
// replace sequences (temp+rename) are still observed. Cancel ctx to stop.
func (r *JSONRepository[S]) StartWatcher(ctx context.Context, cacheStore CacheStore[S]) error {
	if cacheStore == nil {
		return errors.New("cache store is required")
	}
	onChange := r.MakeWatcherCallback(cacheStore)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		// If the timer is stopped before it fires, the scheduled onChange will not run.
		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watcherDebounce, onChange)
		}
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != r.base {
					continue
				}
				// Remove/Rename means the file is being replaced; the next Create reloads it.
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod|fsnotify.Remove|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent(jsonComponentTag).Warnf("watcher error: %v", err)
			}
		}
	}()

	return nil
}

// MakeWatcherCallback returns a callback for file watcher that reloads cache from disk if needed.
func (r *JSONRepository[S]) MakeWatcherCallback(cacheStore CacheStore[S]) func() {
	return ReloadCallback[S](r, cacheStore)
}

// ReloadCallback returns a func that copies the repository's content into
// cacheStore when the persisted version is newer and the cache has no
// unsaved changes.
func ReloadCallback[S any](repo Repository[S], cacheStore CacheStore[S]) func() {
	log := logger.WithComponent("reload")
	return func() {
		diskDoc, loadErr := repo.Load(context.Background())
		if loadErr != nil {
			log.Errorf("watch reload failed: %v", loadErr)
			return
		}
		cacheLastUpdate := cacheStore.GetLastUpdate()
		diskLastUpdate := diskDoc.Metadata.LastUpdate

		if diskLastUpdate < cacheLastUpdate {
			log.Debugf("disk version is not newer than cache: diskLastUpdate=%d cacheLastUpdate=%d", diskLastUpdate, cacheLastUpdate)
			return
		}

		if cacheStore.IsDirty() {
			// the cache content will be written to disk soon anyway
			log.Warn("disk data is newer but cache is dirty; skipping reload")
			return
		}

		if diskLastUpdate == cacheLastUpdate {
			snapshot, err := cacheStore.Snapshot()
			if err != nil {
				log.Errorf("cache reload error: failed to get snapshot: %v", err)
				return
			}
			if AreDocumentsEqual(&snapshot, diskDoc) {
				return
			}
		}

		if err := cacheStore.Replace(*diskDoc); err != nil {
			if errors.Is(err, ErrCacheDirty) {
				log.Warn("cache became dirty during reload; skipping reload")
				return
			}
			log.Errorf("cache reload error: %v", err)
			return
		}
		log.Info("cache reloaded from newer disk version")
	}
}
