// Package config builds a settings Provider and its backend from the
// process environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/backend/badgerstore"
	"github.com/goliatone/go-settings/pkg/backend/filestore"
	"github.com/goliatone/go-settings/pkg/backend/instrumented"
	"github.com/goliatone/go-settings/pkg/backend/memory"
	"github.com/goliatone/go-settings/pkg/backend/redisstore"
	"github.com/goliatone/go-settings/pkg/backend/sqlstore"
)

// Backend kinds accepted in SETTINGS_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned for an unsupported SETTINGS_BACKEND.
var ErrUnknownBackend = errors.New("config: unknown backend")

// Config describes how to reach the settings store.
type Config struct {
	Backend          string `env:"SETTINGS_BACKEND" envDefault:"file"`
	Path             string `env:"SETTINGS_PATH" envDefault:"settings.yaml"`
	RedisAddr        string `env:"SETTINGS_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword    string `env:"SETTINGS_REDIS_PASSWORD"`
	RedisDB          int    `env:"SETTINGS_REDIS_DB" envDefault:"0"`
	RedisPrefix      string `env:"SETTINGS_REDIS_PREFIX" envDefault:"settings"`
	AppVersion       string `env:"SETTINGS_APP_VERSION"`
	PurgeOldVersions bool   `env:"SETTINGS_PURGE_OLD_VERSIONS" envDefault:"false"`
	LogLevel         string `env:"SETTINGS_LOG_LEVEL" envDefault:"info"`
	Metrics          bool   `env:"SETTINGS_METRICS" envDefault:"false"`
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses Config from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the backend kind and the fields it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("config: SETTINGS_PATH is required for the %s backend", c.Backend)
		}
	case BackendBadger:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: SETTINGS_LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Store is an opened backend plus the function that releases what it holds.
type Store struct {
	Backend  settings.Backend
	shutdown func() error
}

// Close releases the connection pool, database or client behind the store.
func (s *Store) Close() error {
	if s == nil || s.shutdown == nil {
		return nil
	}
	return s.shutdown()
}

// OpenBackend constructs the configured backend. When metrics are enabled the
// backend is wrapped with Prometheus and OpenTelemetry instrumentation
// registered on reg.
func OpenBackend(ctx context.Context, cfg Config, logger zerolog.Logger, reg prometheus.Registerer) (*Store, error) {
	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics {
		store.Backend = instrumented.Wrap(store.Backend, cfg.Backend, instrumented.NewMetrics(reg))
	}
	logger.Debug().Str("backend", cfg.Backend).Bool("metrics", cfg.Metrics).Msg("settings backend ready")
	return store, nil
}

func openBackend(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return &Store{Backend: memory.New()}, nil
	case BackendFile:
		b, err := filestore.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Store{Backend: b}, nil
	case BackendSQLite:
		b, err := sqlstore.Open(ctx, cfg.Path, sqlstore.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return &Store{Backend: b, shutdown: b.Shutdown}, nil
	case BackendBadger:
		b, err := badgerstore.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Store{Backend: b, shutdown: b.Shutdown}, nil
	case BackendRedis:
		b, err := redisstore.Dial(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &Store{Backend: b, shutdown: b.Shutdown}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// ProviderOptions maps the configuration onto Provider options.
func (c Config) ProviderOptions(logger zerolog.Logger) []settings.Option {
	opts := []settings.Option{
		settings.WithLogger(settings.NewZerologLogger(logger)),
		settings.WithPurgeOldVersions(c.PurgeOldVersions),
	}
	if strings.TrimSpace(c.AppVersion) != "" {
		opts = append(opts, settings.WithCurrentVersionString(c.AppVersion))
	}
	return opts
}
