package settings

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry functions through call(name, [args]).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Besides the
// standard bindings it declares version_compare(string, string) -> int and
// version_major(string) -> int. Registry functions are reached through
// call(name, [args]).
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx MigrationContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return e.run(program, ctx.withDefaults(), expression)
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &celCompiledRule{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *celEvaluator) run(program celgo.Program, ctx MigrationContext, expression string) (any, error) {
	out, _, err := program.Eval(ctx.bindings())
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.Name, err)
	}
	if out == types.NullValue {
		return nil, nil
	}
	return out.Value(), nil
}

func (e *celEvaluator) loadOrCompile(expression string) (celgo.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv()
	if err != nil {
		return nil, wrapEvaluatorError("cel", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError("cel", expression, "", issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *celEvaluator) engineName() string { return "cel" }

func (e *celEvaluator) withFunctions(registry *FunctionRegistry) Evaluator {
	clone := *e
	clone.registry = mergeFunctions(registry, e.registry)
	return &clone
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("name", celgo.StringType),
		celgo.Variable("value", celgo.StringType),
		celgo.Variable("from", celgo.StringType),
		celgo.Variable("to", celgo.StringType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("metadata", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Function("version_compare",
			celgo.Overload("version_compare_string_string",
				[]*celgo.Type{celgo.StringType, celgo.StringType},
				celgo.IntType,
				celgo.BinaryBinding(celVersionCompare),
			),
		),
		celgo.Function("version_major",
			celgo.Overload("version_major_string",
				[]*celgo.Type{celgo.StringType},
				celgo.IntType,
				celgo.UnaryBinding(celVersionMajor),
			),
		),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.callBinding),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
	program    celgo.Program
}

func (r *celCompiledRule) Evaluate(ctx MigrationContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.run(r.program, ctx.withDefaults(), r.expression)
}

func celVersionCompare(lhs, rhs ref.Val) ref.Val {
	a, ok := lhs.Value().(string)
	if !ok {
		return types.NewErr("version_compare: left operand must be a string")
	}
	b, ok := rhs.Value().(string)
	if !ok {
		return types.NewErr("version_compare: right operand must be a string")
	}
	result, err := versionCompareFunction(a, b)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	return types.Int(result.(int))
}

func celVersionMajor(arg ref.Val) ref.Val {
	s, ok := arg.Value().(string)
	if !ok {
		return types.NewErr("version_major: operand must be a string")
	}
	result, err := versionMajorFunction(s)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	return types.Int(result.(int))
}

func (e *celEvaluator) callBinding(nameVal, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("settings: call name must be string")
	}
	list, ok := argsVal.(traits.Lister)
	if !ok {
		return types.NewErr("settings: call arguments must be a list")
	}
	size, ok := list.Size().(types.Int)
	if !ok {
		return types.NewErr("settings: call arguments must be a list")
	}
	arguments := make([]any, 0, int(size))
	for i := types.Int(0); i < size; i++ {
		arguments = append(arguments, list.Get(i).Value())
	}
	result, err := e.registry.Call(name, arguments...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
