package settings_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/backend/memory"
)

var evaluatorFactories = []struct {
	name string
	// shout is the engine's spelling of a call to the registry function "shout".
	shout string
	new   func(cache settings.ProgramCache, registry *settings.FunctionRegistry) settings.Evaluator
}{
	{
		name:  "expr",
		shout: `shout(value)`,
		new:   func(cache settings.ProgramCache, registry *settings.FunctionRegistry) settings.Evaluator {
			opts := []settings.ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, settings.ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, settings.ExprWithFunctionRegistry(registry))
			}
			return settings.NewExprEvaluator(opts...)
		},
	},
	{
		name:  "cel",
		shout: `call("shout", [value])`,
		new:   func(cache settings.ProgramCache, registry *settings.FunctionRegistry) settings.Evaluator {
			opts := []settings.CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, settings.CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, settings.CELWithFunctionRegistry(registry))
			}
			return settings.NewCELEvaluator(opts...)
		},
	},
	{
		name:  "js",
		shout: `shout(value)`,
		new:   func(cache settings.ProgramCache, registry *settings.FunctionRegistry) settings.Evaluator {
			opts := []settings.JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, settings.JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, settings.JSWithFunctionRegistry(registry))
			}
			return settings.NewJSEvaluator(opts...)
		},
	},
}

type evaluatorFactory func(settings.ProgramCache, *settings.FunctionRegistry) settings.Evaluator

func forEachEvaluator(t *testing.T, fn func(t *testing.T, shout string, newEvaluator evaluatorFactory)) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			if factory.new(nil, nil) == nil {
				t.Skipf("%s evaluator not compiled in", factory.name)
			}
			fn(t, factory.shout, factory.new)
		})
	}
}

func TestEvaluatorsSeeMigrationContext(t *testing.T) {
	ctx := settings.MigrationContext{
		Name:  "Theme",
		Value: "Dark",
		From:  v("1.0"),
		To:    v("2.0"),
		Args:  map[string]any{"suffix": "-v2"},
	}
	forEachEvaluator(t, func(t *testing.T, _ string, newEvaluator evaluatorFactory) {
		evaluator := newEvaluator(nil, nil)
		got, err := evaluator.Evaluate(ctx, `name + ":" + value + ":" + from + ">" + to`)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got != "Theme:Dark:1.0.0.0>2.0.0.0" {
			t.Fatalf("unexpected result %v", got)
		}

		got, err = evaluator.Evaluate(ctx, `value + args.suffix`)
		if err != nil {
			t.Fatalf("evaluate args: %v", err)
		}
		if got != "Dark-v2" {
			t.Fatalf("unexpected args result %v", got)
		}
	})
}

func TestEvaluatorsRejectEmptyExpression(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, _ string, newEvaluator evaluatorFactory) {
		if _, err := newEvaluator(nil, nil).Compile(""); err == nil {
			t.Fatalf("expected error for empty expression")
		}
	})
}

func TestEvaluatorsUseProgramCache(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, _ string, newEvaluator evaluatorFactory) {
		cache := &countingCache{ProgramCache: settings.NewProgramCache()}
		evaluator := newEvaluator(cache, nil)
		for i := 0; i < 3; i++ {
			if _, err := evaluator.Evaluate(settings.MigrationContext{Value: "x"}, `value + "y"`); err != nil {
				t.Fatalf("evaluate: %v", err)
			}
		}
		if cache.hits != 2 || cache.misses != 1 {
			t.Fatalf("expected 1 miss and 2 hits, got misses=%d hits=%d", cache.misses, cache.hits)
		}
	})
}

func TestEvaluatorsCallRegistryFunctions(t *testing.T) {
	registry := settings.NewFunctionRegistry()
	if err := registry.Register("shout", func(args ...any) (any, error) {
		s, _ := args[0].(string)
		return strings.ToUpper(s), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	forEachEvaluator(t, func(t *testing.T, shout string, newEvaluator evaluatorFactory) {
		got, err := newEvaluator(nil, registry).Evaluate(settings.MigrationContext{Value: "dark"}, shout)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got != "DARK" {
			t.Fatalf("expected DARK, got %v", got)
		}
	})
}

func TestUpgradeAppliesMigrationRules(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	seed(t, backend, "1.0", "Theme", "Blue", "Locale", "en_US", "Volume", "11")

	p := newProvider(t, backend, "2.0",
		settings.WithMigrationRule("Theme", `value == "Blue" ? "Navy" : value`),
		settings.WithMigrationRule("Locale", `replace(value, "_", "-")`),
		settings.WithMigrationRule("Volume", `int(value) > 10 ? nil : value`),
	)
	report, err := p.Upgrade(ctx, []settings.Property{theme, locale, volume})
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if diff := cmp.Diff([]string{"Theme", "Locale"}, report.Migrated); diff != "" {
		t.Fatalf("migrated mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Volume"}, report.Skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	want := map[string]string{"Theme": "Navy", "Locale": "en-US"}
	if diff := cmp.Diff(want, backend.Snapshot()["2.0.0.0"]); diff != "" {
		t.Fatalf("stored mismatch (-want +got):\n%s", diff)
	}
}

func TestMigrationRulesWithVersionBuiltins(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	seed(t, backend, "1.4", "Theme", "Classic")

	p := newProvider(t, backend, "2.0",
		settings.WithMigrationRule("Theme", `version_compare(from, "1.5") < 0 && version_major(to) >= 2 ? "Modern" : value`),
	)
	if _, err := p.Upgrade(ctx, []settings.Property{theme}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if got := backend.Snapshot()["2.0.0.0"]["Theme"]; got != "Modern" {
		t.Fatalf("expected Modern, got %q", got)
	}
}

func TestMigrationRulesOnCEL(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	seed(t, backend, "1.0", "Theme", "Blue")

	p := newProvider(t, backend, "2.0",
		settings.WithEvaluator(settings.NewCELEvaluator()),
		settings.WithMigrationRule("Theme", `version_compare(from, to) < 0 && value == "Blue" ? "Navy" : value`),
	)
	if _, err := p.Upgrade(ctx, []settings.Property{theme}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if got := backend.Snapshot()["2.0.0.0"]["Theme"]; got != "Navy" {
		t.Fatalf("expected Navy, got %q", got)
	}
}

func TestProviderFunctionsReachConfiguredEngines(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, shout string, newEvaluator evaluatorFactory) {
		ctx := context.Background()
		backend := memory.New()
		seed(t, backend, "1.0", "Theme", "dark", "Volume", "5")

		p := newProvider(t, backend, "2.0",
			settings.WithEvaluator(newEvaluator(nil, nil)),
			settings.WithCustomFunction("shout", func(args ...any) (any, error) {
				return strings.ToUpper(fmt.Sprint(args[0])), nil
			}),
			settings.WithMigrationRule("Theme", shout),
			settings.WithMigrationRule("Volume", `version_major(to)`),
		)
		if _, err := p.Upgrade(ctx, []settings.Property{theme, volume}); err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		want := map[string]string{"Theme": "DARK", "Volume": "2"}
		if diff := cmp.Diff(want, backend.Snapshot()["2.0.0.0"]); diff != "" {
			t.Fatalf("migrated values mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestRuleFailureNamesEngine(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, shout string, newEvaluator evaluatorFactory) {
		backend := memory.New()
		seed(t, backend, "1.0", "Theme", "dark")

		p := newProvider(t, backend, "2.0",
			settings.WithEvaluator(newEvaluator(nil, nil)),
			settings.WithCustomFunction("shout", func(...any) (any, error) { return nil, errBoom }),
			settings.WithMigrationRule("Theme", shout),
		)
		_, err := p.Upgrade(context.Background(), []settings.Property{theme})
		var evalErr *settings.EvaluationError
		if !errors.As(err, &evalErr) {
			t.Fatalf("expected EvaluationError, got %v", err)
		}
		engine := t.Name()[strings.LastIndex(t.Name(), "/")+1:]
		if evalErr.Engine != engine {
			t.Fatalf("expected engine %q, got %q", engine, evalErr.Engine)
		}
	})
}

func TestMigrationRuleResultsAreFormatted(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	seed(t, backend, "1.0", "Volume", "5", "Theme", "Dark")

	p := newProvider(t, backend, "2.0",
		settings.WithMigrationRule("Volume", `int(value) * 2`),
		settings.WithMigrationRule("Theme", `value == "Dark"`),
	)
	if _, err := p.Upgrade(ctx, []settings.Property{volume, theme}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	want := map[string]string{"Volume": "10", "Theme": "true"}
	if diff := cmp.Diff(want, backend.Snapshot()["2.0.0.0"]); diff != "" {
		t.Fatalf("stored mismatch (-want +got):\n%s", diff)
	}
}

func TestMigrationRuleFailureAbortsUpgrade(t *testing.T) {
	ctx := context.Background()
	backend := newFaultyBackend()
	seed(t, backend.Backend, "1.0", "Theme", "Dark")

	var logged []settings.EvaluatorLogEvent
	p := newProvider(t, backend, "2.0",
		settings.WithMigrationRule("Theme", `fail_now(value)`),
		settings.WithCustomFunction("fail_now", func(...any) (any, error) { return nil, errBoom }),
		settings.WithEvaluatorLogger(settings.EvaluatorLoggerFunc(func(e settings.EvaluatorLogEvent) { logged = append(logged, e) })),
	)
	_, err := p.Upgrade(ctx, []settings.Property{theme})
	var evalErr *settings.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "expr" || evalErr.Property != "Theme" {
		t.Fatalf("unexpected evaluation error metadata %+v", evalErr)
	}
	if len(logged) != 1 || logged[0].Err == nil || logged[0].Property != "Theme" {
		t.Fatalf("expected failed evaluation logged, got %+v", logged)
	}
	backend.balanced(t)
}

func TestInvalidMigrationRuleFailsConstruction(t *testing.T) {
	_, err := settings.New(memory.New(),
		settings.WithCurrentVersion(v("2.0")),
		settings.WithMigrationRule("Theme", `value ==`),
	)
	var evalErr *settings.EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Property != "Theme" {
		t.Fatalf("expected compile EvaluationError for Theme, got %v", err)
	}

	_, err = settings.New(memory.New(), settings.WithMigrationRule("Theme", ""))
	if err == nil {
		t.Fatalf("expected error for empty rule")
	}
}

func TestMigrationRulesSeeNow(t *testing.T) {
	capture := &capturingEvaluator{}
	backend := memory.New()
	seed(t, backend, "1.0", "Theme", "Dark")
	p := newProvider(t, backend, "2.0",
		settings.WithEvaluator(capture),
		settings.WithMigrationRule("Theme", "anything"),
		settings.WithRuleArgs(map[string]any{"k": "v"}),
	)
	before := time.Now()
	if _, err := p.Upgrade(context.Background(), []settings.Property{theme}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if len(capture.contexts) != 1 {
		t.Fatalf("expected one evaluation, got %d", len(capture.contexts))
	}
	got := capture.contexts[0]
	if got.Now == nil || got.Now.Before(before) {
		t.Fatalf("expected Now to be defaulted, got %v", got.Now)
	}
	if got.Name != "Theme" || got.Value != "Dark" || got.From != v("1.0") || got.To != v("2.0") || got.Args["k"] != "v" {
		t.Fatalf("unexpected migration context %+v", got)
	}
}

type countingCache struct {
	settings.ProgramCache
	hits   int
	misses int
}

func (c *countingCache) Get(key string) (any, bool) {
	value, ok := c.ProgramCache.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return value, ok
}

type capturingEvaluator struct {
	contexts []settings.MigrationContext
}

func (e *capturingEvaluator) Evaluate(ctx settings.MigrationContext, _ string) (any, error) {
	e.contexts = append(e.contexts, ctx)
	return ctx.Value, nil
}

func (e *capturingEvaluator) Compile(expr string) (settings.CompiledRule, error) {
	return capturedRule{evaluator: e, expr: expr}, nil
}

type capturedRule struct {
	evaluator *capturingEvaluator
	expr      string
}

func (r capturedRule) Evaluate(ctx settings.MigrationContext) (any, error) {
	return r.evaluator.Evaluate(ctx, r.expr)
}
