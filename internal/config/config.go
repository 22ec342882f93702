package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bassista/go_datastore/internal/logger"
)

const envPrefix = "DATASTORE"

// Config is the full runtime configuration of the datastore binary.
type Config struct {
	Data   DataConfig
	Loader LoaderConfig
	Notify NotifyConfig
	Query  QueryConfig
	Misc   MiscConfig
}

// DataConfig locates the persisted copy of the store.
type DataConfig struct {
	Backend         string // json | bolt | sqlite
	FilePath        string
	PersistInterval time.Duration
	WatchEnabled    bool
}

// LoaderConfig selects where records are loaded from.
type LoaderConfig struct {
	Kind            string // none | file | http | repository
	Source          string // file path, base URL or repository path
	Backend         string // repository backend when Kind is repository
	IDs             []string
	RefreshInterval time.Duration
	Timeout         time.Duration
}

// QueryConfig holds expressions evaluated against the store.
type QueryConfig struct {
	// Watch is logged with its match count after every store change.
	Watch string
}

// NotifyConfig configures the optional MQTT change publisher.
type NotifyConfig struct {
	MQTTEnabled  bool
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string
	MQTTQoS      int
	MQTTRetained bool
}

// MiscConfig holds process-wide settings.
type MiscConfig struct {
	LogLevel          string
	HoneybadgerAPIKey string
	Environment       string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.backend", "json")
	v.SetDefault("data.file_path", "./config/data/profiles.json")
	v.SetDefault("data.persist_interval", 5*time.Second)
	v.SetDefault("data.watch_enabled", true)

	v.SetDefault("loader.kind", "none")
	v.SetDefault("loader.source", "")
	v.SetDefault("loader.backend", "json")
	v.SetDefault("loader.ids", []string{})
	v.SetDefault("loader.refresh_interval", time.Duration(0))
	v.SetDefault("loader.timeout", 30*time.Second)

	v.SetDefault("notify.mqtt.enabled", false)
	v.SetDefault("notify.mqtt.client_id", "go-datastore")
	v.SetDefault("notify.mqtt.topic", "datastore/changed")
	v.SetDefault("notify.mqtt.qos", 1)

	v.SetDefault("query.watch", "")

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.environment", "production")
}

// LoadConfig reads .env (optional), then config.yaml from
// DATASTORE_CONFIG_PATH (default ./config). Environment variables such as
// DATASTORE_DATA_BACKEND override the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("config").Warnf("cannot read .env: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getEnvOrDefault(envPrefix+"_CONFIG_PATH", "./config"))
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Info("no config file found, using defaults and env vars")
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	qos, err := getEnvOrViperInt(v, envPrefix+"_NOTIFY_MQTT_QOS", "notify.mqtt.qos")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Data: DataConfig{
			Backend:         strings.ToLower(v.GetString("data.backend")),
			FilePath:        v.GetString("data.file_path"),
			PersistInterval: v.GetDuration("data.persist_interval"),
			WatchEnabled:    v.GetBool("data.watch_enabled"),
		},
		Loader: LoaderConfig{
			Kind:            strings.ToLower(v.GetString("loader.kind")),
			Source:          v.GetString("loader.source"),
			Backend:         strings.ToLower(v.GetString("loader.backend")),
			IDs:             v.GetStringSlice("loader.ids"),
			RefreshInterval: v.GetDuration("loader.refresh_interval"),
			Timeout:         v.GetDuration("loader.timeout"),
		},
		Notify: NotifyConfig{
			MQTTEnabled:  v.GetBool("notify.mqtt.enabled"),
			MQTTBroker:   v.GetString("notify.mqtt.broker"),
			MQTTClientID: v.GetString("notify.mqtt.client_id"),
			MQTTUsername: v.GetString("notify.mqtt.username"),
			MQTTPassword: v.GetString("notify.mqtt.password"),
			MQTTTopic:    v.GetString("notify.mqtt.topic"),
			MQTTQoS:      qos,
			MQTTRetained: v.GetBool("notify.mqtt.retained"),
		},
		Query: QueryConfig{
			Watch: strings.TrimSpace(v.GetString("query.watch")),
		},
		Misc: MiscConfig{
			LogLevel:          v.GetString("misc.log_level"),
			HoneybadgerAPIKey: v.GetString("misc.honeybadger_api_key"),
			Environment:       v.GetString("misc.environment"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Data.Backend {
	case "json", "bolt", "sqlite":
	default:
		return fmt.Errorf("data.backend must be json, bolt or sqlite, got %q", c.Data.Backend)
	}
	if c.Data.FilePath == "" {
		return errors.New("data.file_path is required")
	}
	if c.Data.PersistInterval <= 0 {
		return fmt.Errorf("data.persist_interval must be positive, got %v", c.Data.PersistInterval)
	}

	switch c.Loader.Kind {
	case "none":
	case "file", "http", "repository":
		if c.Loader.Source == "" {
			return fmt.Errorf("loader.source is required for loader kind %q", c.Loader.Kind)
		}
	default:
		return fmt.Errorf("loader.kind must be none, file, http or repository, got %q", c.Loader.Kind)
	}
	if c.Loader.Kind == "repository" {
		switch c.Loader.Backend {
		case "json", "bolt", "sqlite":
		default:
			return fmt.Errorf("loader.backend must be json, bolt or sqlite, got %q", c.Loader.Backend)
		}
		if c.Loader.Backend == c.Data.Backend && c.Loader.Source == c.Data.FilePath {
			return errors.New("loader.source must differ from data.file_path")
		}
	}
	for _, id := range c.Loader.IDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("loader.ids must not contain empty ids")
		}
	}
	if c.Loader.RefreshInterval < 0 {
		return fmt.Errorf("loader.refresh_interval must not be negative, got %v", c.Loader.RefreshInterval)
	}
	if c.Loader.Timeout <= 0 {
		return fmt.Errorf("loader.timeout must be positive, got %v", c.Loader.Timeout)
	}

	if c.Notify.MQTTEnabled {
		if c.Notify.MQTTBroker == "" {
			return errors.New("notify.mqtt.broker is required when mqtt is enabled")
		}
		if c.Notify.MQTTTopic == "" {
			return errors.New("notify.mqtt.topic is required when mqtt is enabled")
		}
		if c.Notify.MQTTQoS < 0 || c.Notify.MQTTQoS > 2 {
			return fmt.Errorf("notify.mqtt.qos must be 0, 1 or 2, got %d", c.Notify.MQTTQoS)
		}
	}

	if c.Misc.LogLevel == "" {
		return errors.New("misc.log_level is required")
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvOrViperInt(v *viper.Viper, envKey, viperKey string) (int, error) {
	if raw, ok := os.LookupEnv(envKey); ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", envKey, err)
		}
		return n, nil
	}
	return v.GetInt(viperKey), nil
}
