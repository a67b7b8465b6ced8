package main

import (
	"errors"
	"io"

	goversion "github.com/caarlos0/go-version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/config"
)

type rootOptions struct {
	Stdout io.Writer
	Stderr io.Writer
	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

type globalFlags struct {
	backend    string
	path       string
	appVersion string
	redisAddr  string
	logLevel   string
	metrics    bool
}

// app is the state shared by every subcommand once the root pre-run has
// opened the store.
type app struct {
	opts     rootOptions
	flags    globalFlags
	cfg      config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	store    *config.Store
	provider *settings.Provider
}

func newRootCmd(opts rootOptions) *cobra.Command {
	a := &app{opts: opts}
	info := goversion.GetVersionInfo()

	cmd := &cobra.Command{
		Use:   "settingsctl",
		Short: "Inspect and maintain a versioned settings store",
		Long: `settingsctl reads and writes settings stored per application version.

Values are stored under the current version (--app-version or
SETTINGS_APP_VERSION). "upgrade" copies the values of the closest older
version forward, "purge" removes older versions.

Examples:
  settingsctl --app-version 1.2 set Theme=Dark Locale=en
  settingsctl --app-version 2.0 upgrade Theme Locale --purge
  settingsctl --backend sqlite --path settings.db versions`,
		Version:           info.GitVersion,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.SetOut(opts.Stdout)
	cmd.SetErr(opts.Stderr)
	a.bindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newVersionsCmd(a),
		newPreviousCmd(a),
		newResetCmd(a),
		newUpgradeCmd(a),
		newPurgeCmd(a),
	)
	for _, sub := range cmd.Commands() {
		sub.RunE = a.closing(sub.RunE)
	}
	return cmd
}

// closing releases the store once fn returns, whatever the outcome.
func (a *app) closing(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			err = errors.Join(err, a.teardown())
		}()
		return fn(cmd, args)
	}
}

func (a *app) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.flags.backend, "backend", "", "store kind: memory, file, sqlite, badger or redis (env SETTINGS_BACKEND)")
	fs.StringVar(&a.flags.path, "path", "", "file, database or directory path (env SETTINGS_PATH)")
	fs.StringVar(&a.flags.appVersion, "app-version", "", "current application version (env SETTINGS_APP_VERSION)")
	fs.StringVar(&a.flags.redisAddr, "redis-addr", "", "redis address (env SETTINGS_REDIS_ADDR)")
	fs.StringVar(&a.flags.logLevel, "log-level", "", "log level (env SETTINGS_LOG_LEVEL)")
	fs.BoolVar(&a.flags.metrics, "metrics", false, "instrument backend calls (env SETTINGS_METRICS)")
}

// applyFlags overrides environment configuration with explicitly set flags.
func (a *app) applyFlags(fs *pflag.FlagSet) {
	if fs.Changed("backend") {
		a.cfg.Backend = a.flags.backend
	}
	if fs.Changed("path") {
		a.cfg.Path = a.flags.path
	}
	if fs.Changed("app-version") {
		a.cfg.AppVersion = a.flags.appVersion
	}
	if fs.Changed("redis-addr") {
		a.cfg.RedisAddr = a.flags.redisAddr
	}
	if fs.Changed("log-level") {
		a.cfg.LogLevel = a.flags.logLevel
	}
	if fs.Changed("metrics") {
		a.cfg.Metrics = a.flags.metrics
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.opts.Environ != nil {
		a.cfg, err = config.LoadFrom(a.opts.Environ)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	a.applyFlags(cmd.Flags())
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.logger = zerolog.New(a.opts.Stderr).Level(a.cfg.Level()).With().Timestamp().Logger()
	a.registry = prometheus.NewRegistry()
	a.store, err = config.OpenBackend(cmd.Context(), a.cfg, a.logger, a.registry)
	if err != nil {
		return err
	}
	a.provider, err = settings.New(a.store.Backend, a.cfg.ProviderOptions(a.logger)...)
	if err != nil {
		return errors.Join(err, a.teardown())
	}
	return nil
}

func (a *app) teardown() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
