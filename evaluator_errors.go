package settings

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError captures migration rule metadata alongside the originating error.
type EvaluationError struct {
	Engine   string
	Expr     string
	Property string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: %s evaluator %s property=%s: %v", e.Engine, describeExpression(e.Expr), describeProperty(e.Property), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func describeProperty(name string) string {
	if name == "" {
		return "<unknown>"
	}
	return name
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "settings:") {
		return err
	}
	return fmt.Errorf("settings: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, property string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Property == "" {
			evalErr.Property = property
		}
		return evalErr
	}

	return &EvaluationError{
		Engine:   engine,
		Expr:     expr,
		Property: property,
		Err:      err,
	}
}
