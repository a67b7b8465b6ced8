package settings

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function represents a callable registered against evaluators.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// DefaultFunctionRegistry returns a registry holding the built-in functions:
//
//	version_compare(a, b) -1, 0 or 1 comparing two version strings
//	version_major(v)      major component of a version string
func DefaultFunctionRegistry() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("version_compare", versionCompareFunction)
	_ = registry.Register("version_major", versionMajorFunction)
	return registry
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("settings: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("settings: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("settings: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("settings: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("settings: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry adds the functions in registry to the ones available
// to the built-in engines.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *providerConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the built-in engines.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *providerConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// functionRegistry merges the built-ins with the configured functions.
// Configured functions win on name clashes.
func (p *Provider) functionRegistry() *FunctionRegistry {
	return mergeFunctions(DefaultFunctionRegistry(), p.cfg.functions)
}

// mergeFunctions returns a copy of base with every function in over added,
// replacing any base function of the same name.
func mergeFunctions(base, over *FunctionRegistry) *FunctionRegistry {
	merged := base.Clone()
	if merged == nil {
		merged = NewFunctionRegistry()
	}
	if over == nil {
		return merged
	}
	over.mu.RLock()
	defer over.mu.RUnlock()
	for name, fn := range over.functions {
		merged.functions[name] = fn
	}
	return merged
}

func versionCompareFunction(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("version_compare: expected 2 arguments, got %d", len(args))
	}
	a, err := versionArgument(args[0])
	if err != nil {
		return nil, fmt.Errorf("version_compare: %w", err)
	}
	b, err := versionArgument(args[1])
	if err != nil {
		return nil, fmt.Errorf("version_compare: %w", err)
	}
	return a.Compare(b), nil
}

func versionMajorFunction(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("version_major: expected 1 argument, got %d", len(args))
	}
	v, err := versionArgument(args[0])
	if err != nil {
		return nil, fmt.Errorf("version_major: %w", err)
	}
	return v.Major, nil
}

func versionArgument(arg any) (Version, error) {
	switch typed := arg.(type) {
	case Version:
		return typed, nil
	case string:
		return ParseVersion(typed)
	default:
		return Version{}, fmt.Errorf("%w: unsupported argument %T", ErrInvalidVersion, arg)
	}
}
