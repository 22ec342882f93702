package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bassista/go_datastore/internal/config"
	"github.com/bassista/go_datastore/internal/datastore"
	"github.com/bassista/go_datastore/internal/logger"
	"github.com/bassista/go_datastore/internal/notify"
	"github.com/bassista/go_datastore/internal/persist"
	"github.com/bassista/go_datastore/internal/profile"
	"github.com/bassista/go_datastore/internal/query"
	"github.com/bassista/go_datastore/internal/repository"
	"github.com/bassista/go_datastore/internal/scheduler"
)

// ProfileStore is the store served by the binary.
type ProfileStore = datastore.Store[string, profile.Wire, profile.Profile, profile.Stored]

const shutdownTimeout = 10 * time.Second

// App is the application container (immutable dependencies + lifecycle context).
type App struct {
	Config   *config.Config
	Repo     repository.Repository[profile.Stored]
	Store    *ProfileStore
	Mirror   *persist.Mirror[profile.Stored]
	Reporter Reporter
	Queries  *query.Compiler[profile.Profile]

	BaseCtx context.Context
	Cancel  context.CancelFunc

	sub      *notify.Subscription
	watchSub *notify.Subscription
	done     []<-chan struct{}
}

// New wires the dependencies. rep may be nil.
func New(cfg *config.Config, repo repository.Repository[profile.Stored], store *ProfileStore, rep Reporter) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if repo == nil {
		return nil, errors.New("repo is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if rep == nil {
		rep = nopReporter{}
	}

	queries := query.NewCompiler[profile.Profile]()
	if cfg.Query.Watch != "" {
		if _, err := queries.Compile(cfg.Query.Watch); err != nil {
			return nil, fmt.Errorf("invalid query.watch: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:   cfg,
		Repo:     repo,
		Store:    store,
		Reporter: rep,
		Queries:  queries,
		BaseCtx:  ctx,
		Cancel:   cancel,
	}, nil
}

// Select returns the profiles matching an expr-lang expression, e.g.
// `UserName startsWith "a"`.
func (a *App) Select(expression string) ([]profile.Profile, error) {
	return query.Select[string](a.Queries, a.Store, expression)
}

// Bootstrap fills the store from the repository, then from the loader when
// one is configured. A loader failure is reported but not fatal: the store
// keeps serving what was persisted.
func (a *App) Bootstrap(ctx context.Context) error {
	doc, err := a.Repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load persisted records: %w", err)
	}
	if _, err := a.Store.ReplaceStored(doc.Records); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	a.Mirror = persist.NewMirror[profile.Stored](a.Store, doc.Metadata.LastUpdate)
	logger.WithComponent("app").Infof("loaded %d persisted records", len(doc.Records))

	if a.Config.Loader.Kind == "none" {
		return nil
	}
	if err := load(ctx, a.Store, a.Config.Loader.IDs); err != nil {
		logger.WithComponent("app").Errorf("initial load from %s failed: %v", a.Config.Loader.Kind, err)
		a.Reporter.Report(err, "loader", "bootstrap")
		return nil
	}
	logger.WithComponent("app").Infof("store holds %d records after initial load", a.Store.Len())
	return nil
}

// AttachSink publishes a change notification through sink on every store
// change.
func (a *App) AttachSink(sink *notify.MQTTSink) {
	if sink == nil {
		return
	}
	a.sub = sink.Attach(a.Store.Changes())
}

// StartWatchers starts the background jobs: file watcher, persistence and
// periodic refresh. Bootstrap must have run.
func (a *App) StartWatchers() error {
	if a.Mirror == nil {
		return errors.New("app is not bootstrapped")
	}

	if w, ok := a.Repo.(repository.Watcher[profile.Stored]); ok && a.Config.Data.WatchEnabled {
		if err := w.StartWatcher(a.BaseCtx, a.Mirror); err != nil {
			return fmt.Errorf("cannot start data file watcher: %w", err)
		}
	}

	a.done = append(a.done, persist.StartScheduler[profile.Stored](a.BaseCtx, a.Mirror, &reportingSaver{repo: a.Repo, rep: a.Reporter}, a.Config.Data.PersistInterval))

	if a.Config.Loader.Kind != "none" && a.Config.Loader.RefreshInterval > 0 {
		s := scheduler.NewPollingScheduler(&guardedRefresher{store: a.Store, ids: a.Config.Loader.IDs, rep: a.Reporter}, a.Config.Loader.RefreshInterval)
		a.done = append(a.done, s.Start(a.BaseCtx))
	}

	if a.Config.Query.Watch != "" {
		a.watchSub = a.Store.Subscribe(a.logWatch)
		a.logWatch()
	}
	return nil
}

func (a *App) logWatch() {
	matches, err := a.Select(a.Config.Query.Watch)
	if err != nil {
		logger.WithComponent("query").Errorf("watch query %q: %v", a.Config.Query.Watch, err)
		return
	}
	logger.WithComponent("query").Infof("%d of %d records match %q", len(matches), a.Store.Len(), a.Config.Query.Watch)
}

// load fetches ids when given, everything otherwise.
func load(ctx context.Context, store *ProfileStore, ids []string) error {
	if len(ids) > 0 {
		return store.LoadMany(ctx, ids...)
	}
	return store.LoadAll(ctx)
}

// Shutdown stops the background jobs, waits for the final flush and closes
// the repository.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()

	timeout := time.After(shutdownTimeout)
	for _, done := range a.done {
		select {
		case <-done:
		case <-timeout:
			logger.WithComponent("app").Warn("timed out waiting for background jobs")
		}
	}

	a.sub.Cancel()
	a.watchSub.Cancel()
	if a.Mirror != nil {
		a.Mirror.Close()
	}
	a.Store.Close()
	if err := a.Repo.Close(); err != nil {
		logger.WithComponent("app").Errorf("closing repository: %v", err)
	}
	a.Reporter.Flush()
}

// reportingSaver forwards save failures to the reporter.
type reportingSaver struct {
	repo repository.Saver[profile.Stored]
	rep  Reporter
}

func (s *reportingSaver) Save(ctx context.Context, doc *repository.Document[profile.Stored]) error {
	err := s.repo.Save(ctx, doc)
	if err != nil {
		s.rep.Report(err, "persist")
	}
	return err
}

type guardedRefresher struct {
	store *ProfileStore
	ids   []string
	rep   Reporter
}

func (r *guardedRefresher) LoadAll(ctx context.Context) (err error) {
	guard(r.rep, "refresh", func() {
		err = load(ctx, r.store, r.ids)
	})
	if err != nil && ctx.Err() == nil {
		r.rep.Report(err, "loader", "refresh")
	}
	return err
}
