package settings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

var ErrNoEvaluator = errors.New("settings: evaluator not configured")

// builtinEvaluator is implemented by the engines shipped with this package.
type builtinEvaluator interface {
	Evaluator
	engineName() string
	// withFunctions returns a copy that also sees the functions in registry.
	// Functions already registered on the engine win on name clashes.
	withFunctions(registry *FunctionRegistry) Evaluator
}

func (p *Provider) compileRules() error {
	if len(p.cfg.rules) == 0 {
		return nil
	}
	evaluator, err := p.resolveEvaluator()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(p.cfg.rules))
	for name := range p.cfg.rules {
		names = append(names, name)
	}
	sort.Strings(names)

	p.rules = make(map[string]compiledMigrationRule, len(names))
	for _, name := range names {
		expr := p.cfg.rules[name]
		if expr == "" {
			return wrapEvaluationError(evaluatorEngineName(evaluator), expr, name, fmt.Errorf("expression must not be empty"))
		}
		rule, err := evaluator.Compile(expr)
		if err != nil {
			return wrapEvaluationError(evaluatorEngineName(evaluator), expr, name, err)
		}
		p.rules[name] = compiledMigrationRule{expr: expr, rule: rule}
	}
	return nil
}

func (p *Provider) resolveEvaluator() (Evaluator, error) {
	if p.evaluator != nil {
		return p.evaluator, nil
	}
	if p.cfg.evaluator != nil {
		p.evaluator = p.cfg.evaluator
		if builtin, ok := p.evaluator.(builtinEvaluator); ok {
			p.evaluator = builtin.withFunctions(p.functionRegistry())
		}
		return p.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := p.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	exprOpts = append(exprOpts, ExprWithFunctionRegistry(p.functionRegistry()))
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	p.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

// applyRule runs the migration rule registered for name, if any. keep is
// false when the rule evaluated to nil.
func (p *Provider) applyRule(name, serialized string, from Version) (out string, keep bool, err error) {
	compiled, ok := p.rules[name]
	if !ok {
		return serialized, true, nil
	}
	ctx := MigrationContext{
		Name:  name,
		Value: serialized,
		From:  from,
		To:    p.current,
		Args:  cloneMap(p.cfg.ruleArgs),
	}.withDefaults()

	start := time.Now()
	result, evalErr := compiled.rule.Evaluate(ctx)
	duration := time.Since(start)
	engine := evaluatorEngineName(p.evaluator)
	evalErr = wrapEvaluationError(engine, compiled.expr, name, evalErr)
	p.cfg.evaluatorLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     compiled.expr,
		Property: name,
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return "", false, evalErr
	}
	return formatRuleResult(result)
}

func formatRuleResult(result any) (string, bool, error) {
	switch typed := result.(type) {
	case nil:
		return "", false, nil
	case string:
		return typed, true, nil
	case bool:
		return strconv.FormatBool(typed), true, nil
	case fmt.Stringer:
		return typed.String(), true, nil
	default:
		return fmt.Sprint(typed), true, nil
	}
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if builtin, ok := e.(builtinEvaluator); ok {
		return builtin.engineName()
	}
	return "custom"
}
