package repository

import (
	"fmt"

	"github.com/bassista/go_datastore/internal/logger"
	"github.com/bassista/go_datastore/internal/record"
)

// Backend names accepted by New.
const (
	BackendJSON   = backendJSON
	BackendBolt   = backendBolt
	BackendSQLite = backendSQLite
)

// Config selects and locates a backend.
type Config struct {
	Backend string
	Path    string
}

// New creates the repository named by cfg.Backend.
func New[ID comparable, S record.Identifiable[ID]](cfg Config) (Repository[S], error) {
	logger.WithComponent("repository").Debugf("opening %s repository at %s", cfg.Backend, cfg.Path)
	var (
		repo Repository[S]
		err  error
	)
	switch cfg.Backend {
	case BackendJSON:
		repo, err = asRepository[S](NewJSONRepository[S](cfg.Path))
	case BackendBolt:
		repo, err = asRepository[S](NewBoltRepository[ID, S](cfg.Path))
	case BackendSQLite:
		repo, err = asRepository[S](NewSQLiteRepository[ID, S](cfg.Path))
	default:
		err = fmt.Errorf("unknown repository backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// asRepository drops the concrete type without leaking a typed nil.
func asRepository[S any, R Repository[S]](r R, err error) (Repository[S], error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
