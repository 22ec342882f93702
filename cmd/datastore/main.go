package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/bassista/go_datastore/internal/app"
	"github.com/bassista/go_datastore/internal/config"
	"github.com/bassista/go_datastore/internal/datastore"
	"github.com/bassista/go_datastore/internal/loader"
	"github.com/bassista/go_datastore/internal/logger"
	"github.com/bassista/go_datastore/internal/notify"
	"github.com/bassista/go_datastore/internal/profile"
	"github.com/bassista/go_datastore/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', using 'info': %v", cfg.Misc.LogLevel, err)
	}

	repo, err := repository.New[string, profile.Stored](repository.Config{Backend: cfg.Data.Backend, Path: cfg.Data.FilePath})
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init repository: %v", err)
	}

	source, closeSource, err := newLoader(cfg.Loader)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init loader: %v", err)
	}
	defer func() {
		if err := closeSource(); err != nil {
			logger.WithComponent("main").Errorf("closing loader source: %v", err)
		}
	}()
	store := datastore.New[string, profile.Wire, profile.Profile, profile.Stored](source, profile.FromWire)

	a, err := app.New(cfg, repo, store, app.NewReporter(cfg.Misc.HoneybadgerAPIKey, cfg.Misc.Environment))
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer a.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Bootstrap(ctx); err != nil {
		logger.WithComponent("main").Errorf("bootstrap failed: %v", err)
		return
	}

	if cfg.Notify.MQTTEnabled {
		mqttCfg := notify.MQTTConfig{
			Broker:   cfg.Notify.MQTTBroker,
			ClientID: cfg.Notify.MQTTClientID,
			Username: cfg.Notify.MQTTUsername,
			Password: cfg.Notify.MQTTPassword,
			Topic:    cfg.Notify.MQTTTopic,
			QoS:      byte(cfg.Notify.MQTTQoS),
			Retained: cfg.Notify.MQTTRetained,
		}
		client, err := notify.NewMQTTClient(mqttCfg)
		if err != nil {
			logger.WithComponent("main").Errorf("mqtt disabled: %v", err)
		} else {
			defer client.Disconnect(250)
			sink, err := notify.NewMQTTSink(client, mqttCfg)
			if err != nil {
				logger.WithComponent("main").Errorf("mqtt disabled: %v", err)
			}
			a.AttachSink(sink)
		}
	}

	if err := a.StartWatchers(); err != nil {
		logger.WithComponent("main").Errorf("cannot start background jobs: %v", err)
		return
	}

	logger.WithComponent("main").Infof("datastore running with %d records (%s backend at %s)", store.Len(), cfg.Data.Backend, cfg.Data.FilePath)
	<-ctx.Done()
	logger.WithComponent("main").Info("shutting down")
}

func noClose() error { return nil }

// newLoader builds the configured wire source and the func releasing it.
func newLoader(cfg config.LoaderConfig) (loader.Loader[string, profile.Wire], func() error, error) {
	switch cfg.Kind {
	case "none":
		return loader.Funcs[string, profile.Wire]{}, noClose, nil
	case "file":
		l, err := loader.NewFileLoader[string, profile.Wire](cfg.Source)
		if err != nil {
			return nil, nil, err
		}
		return l, noClose, nil
	case "http":
		l, err := loader.NewHTTPLoader[string, profile.Wire](cfg.Source, &http.Client{Timeout: cfg.Timeout})
		if err != nil {
			return nil, nil, err
		}
		return l, noClose, nil
	case "repository":
		seed, err := repository.New[string, profile.Stored](repository.Config{Backend: cfg.Backend, Path: cfg.Source})
		if err != nil {
			return nil, nil, err
		}
		return loader.Adapt[string, profile.Stored, profile.Wire](repository.NewLoader[string, profile.Stored](seed), profile.StoredToWire), seed.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown loader kind %q", cfg.Kind)
	}
}
