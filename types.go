package settings

import (
	"context"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
)

// MigrationContext carries the inputs available to a migration rule while a
// previous-version value is copied into the current version.
type MigrationContext struct {
	Name     string
	Value    string
	From     Version
	To       Version
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx MigrationContext) withDefaultNow() MigrationContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx MigrationContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx MigrationContext) withDefaultMaps() MigrationContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx MigrationContext) withDefaults() MigrationContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

// bindings returns the variables every engine exposes to expressions.
func (ctx MigrationContext) bindings() map[string]any {
	return map[string]any{
		"name":     ctx.Name,
		"value":    ctx.Value,
		"from":     ctx.From.String(),
		"to":       ctx.To.String(),
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
}

// Evaluator executes migration rule expressions.
type Evaluator interface {
	Evaluate(ctx MigrationContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx MigrationContext) (any, error)
}

// Option configures a Provider.
type Option func(*providerConfig)

type providerConfig struct {
	currentVersion   *Version
	appVersion       string
	purgeOldVersions bool
	logger           Logger
	evaluator        Evaluator
	evaluatorLogger  EvaluatorLogger
	programCache     ProgramCache
	functions        *FunctionRegistry
	rules            map[string]string
	ruleArgs         map[string]any
	activityHooks    activity.Hooks
	activityConfig   activity.Config
	activitySet      bool
	activityActor    func(context.Context) string
}

func applyOptions(opts []Option) providerConfig {
	cfg := providerConfig{
		logger:          noopLogger{},
		evaluatorLogger: noopEvaluatorLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithCurrentVersion injects the running application's version. When omitted,
// ResolveAppVersion is used.
func WithCurrentVersion(v Version) Option {
	return func(cfg *providerConfig) {
		version := v
		cfg.currentVersion = &version
	}
}

// WithCurrentVersionString is WithAppVersion for build-info resolution: the
// value is parsed at construction and MinVersion is used when it is invalid.
func WithCurrentVersionString(value string) Option {
	return func(cfg *providerConfig) {
		cfg.appVersion = value
	}
}

// WithPurgeOldVersions sets the default purge policy applied by Upgrade.
func WithPurgeOldVersions(enabled bool) Option {
	return func(cfg *providerConfig) {
		cfg.purgeOldVersions = enabled
	}
}

// WithEvaluator configures the engine used for migration rules. The expr
// engine is used when none is configured.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *providerConfig) {
		cfg.evaluator = e
	}
}

// WithMigrationRule registers an expression that transforms the previous value
// of property before Upgrade writes it.
func WithMigrationRule(property, expr string) Option {
	return func(cfg *providerConfig) {
		if property == "" {
			return
		}
		if cfg.rules == nil {
			cfg.rules = map[string]string{}
		}
		cfg.rules[property] = expr
	}
}

// WithRuleArgs exposes args to migration rules as the "args" variable.
func WithRuleArgs(args map[string]any) Option {
	return func(cfg *providerConfig) {
		cfg.ruleArgs = cloneMap(args)
	}
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
