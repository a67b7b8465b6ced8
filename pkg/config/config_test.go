package config_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/backend/instrumented"
	"github.com/goliatone/go-settings/pkg/backend/memory"
	"github.com/goliatone/go-settings/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, config.Config{
		Backend:     config.BackendFile,
		Path:        "settings.yaml",
		RedisAddr:   "127.0.0.1:6379",
		RedisPrefix: "settings",
		LogLevel:    "info",
	}, cfg)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFromEnvironment(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"SETTINGS_BACKEND":            "redis",
		"SETTINGS_REDIS_ADDR":         "redis:6380",
		"SETTINGS_REDIS_DB":           "3",
		"SETTINGS_APP_VERSION":        "2.4.1",
		"SETTINGS_PURGE_OLD_VERSIONS": "true",
		"SETTINGS_LOG_LEVEL":          "debug",
		"SETTINGS_METRICS":            "true",
	})
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, "redis:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "2.4.1", cfg.AppVersion)
	assert.True(t, cfg.PurgeOldVersions)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := config.LoadFrom(map[string]string{"SETTINGS_BACKEND": "etcd"})
	assert.ErrorIs(t, err, config.ErrUnknownBackend)

	_, err = config.LoadFrom(map[string]string{"SETTINGS_BACKEND": "sqlite", "SETTINGS_PATH": " "})
	assert.Error(t, err)

	_, err = config.LoadFrom(map[string]string{"SETTINGS_LOG_LEVEL": "loud"})
	assert.Error(t, err)

	_, err = config.LoadFrom(map[string]string{"SETTINGS_REDIS_DB": "one"})
	assert.Error(t, err)
}

func TestOpenBackendKinds(t *testing.T) {
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	cases := []struct {
		name string
		cfg  config.Config
	}{
		{name: "memory", cfg: config.Config{Backend: config.BackendMemory}},
		{name: "file yaml", cfg: config.Config{Backend: config.BackendFile, Path: filepath.Join(dir, "settings.yaml")}},
		{name: "file toml", cfg: config.Config{Backend: config.BackendFile, Path: filepath.Join(dir, "settings.toml")}},
		{name: "sqlite", cfg: config.Config{Backend: config.BackendSQLite, Path: filepath.Join(dir, "settings.db")}},
		{name: "badger", cfg: config.Config{Backend: config.BackendBadger, Path: filepath.Join(dir, "badger")}},
		{name: "badger in memory", cfg: config.Config{Backend: config.BackendBadger}},
		{name: "redis", cfg: config.Config{Backend: config.BackendRedis, RedisAddr: mr.Addr(), RedisPrefix: "app"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := config.OpenBackend(ctx, tc.cfg, zerolog.Nop(), prometheus.NewRegistry())
			require.NoError(t, err)
			defer func() { require.NoError(t, store.Close()) }()

			p, err := settings.New(store.Backend, settings.WithCurrentVersion(settings.MustParseVersion("1.0")))
			require.NoError(t, err)
			theme := settings.Property{Name: "Theme", Default: "Light"}
			require.NoError(t, p.Save(ctx, settings.Values{settings.NewValue(theme, "Dark")}))

			values, err := p.Load(ctx, []settings.Property{theme})
			require.NoError(t, err)
			assert.Equal(t, "Dark", values[0].String())
		})
	}
}

func TestOpenBackendWrapsWithMetrics(t *testing.T) {
	store, err := config.OpenBackend(context.Background(), config.Config{Backend: config.BackendMemory, Metrics: true}, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	_, ok := store.Backend.(*instrumented.Backend)
	assert.True(t, ok, "expected instrumented backend, got %T", store.Backend)
	assert.True(t, settings.CapabilitiesOf(store.Backend).Versioning)
}

func TestOpenBackendFailures(t *testing.T) {
	_, err := config.OpenBackend(context.Background(), config.Config{Backend: "etcd"}, zerolog.Nop(), nil)
	assert.True(t, errors.Is(err, config.ErrUnknownBackend))

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = config.OpenBackend(context.Background(), config.Config{Backend: config.BackendRedis, RedisAddr: addr}, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestProviderOptions(t *testing.T) {
	cfg := config.Config{AppVersion: "3.1.4", PurgeOldVersions: true}
	p, err := settings.New(memory.New(), cfg.ProviderOptions(zerolog.Nop())...)
	require.NoError(t, err)
	assert.Equal(t, settings.MustParseVersion("3.1.4"), p.CurrentVersion())
}
