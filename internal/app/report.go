package app

import (
	"fmt"

	honeybadger "github.com/honeybadger-io/honeybadger-go"

	"github.com/bassista/go_datastore/internal/logger"
)

// Reporter sends background failures to an error tracker.
type Reporter interface {
	Report(err error, tags ...string)
	Flush()
}

type nopReporter struct{}

func (nopReporter) Report(error, ...string) {}
func (nopReporter) Flush()                  {}

type honeybadgerReporter struct {
	client *honeybadger.Client
}

// NewReporter returns a Honeybadger reporter, or a no-op one when apiKey is
// empty.
func NewReporter(apiKey, env string) Reporter {
	if apiKey == "" {
		logger.WithComponent("app").Info("Honeybadger is not active. To enable error reporting, set misc.honeybadger_api_key.")
		return nopReporter{}
	}
	return newHoneybadgerReporter(honeybadger.Configuration{APIKey: apiKey, Env: env})
}

func newHoneybadgerReporter(cfg honeybadger.Configuration) *honeybadgerReporter {
	logger.WithComponent("app").Info("Honeybadger error reporting is enabled.")
	return &honeybadgerReporter{client: honeybadger.New(cfg)}
}

func (r *honeybadgerReporter) Report(err error, tags ...string) {
	if err == nil {
		return
	}
	if _, nerr := r.client.Notify(err, honeybadger.Tags(tags)); nerr != nil {
		logger.WithComponent("app").Warnf("honeybadger notify failed: %v", nerr)
	}
}

func (r *honeybadgerReporter) Flush() {
	r.client.Flush()
}

// guard runs fn and reports a panic before re-raising it.
func guard(rep Reporter, name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			rep.Report(fmt.Errorf("panic in %s: %v", name, rec), "panic")
			rep.Flush()
			panic(rec)
		}
	}()
	fn()
}
