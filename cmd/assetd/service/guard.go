package service

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
)

// GuardEvaluator evaluates rule guard expressions using CEL
// (Common Expression Language), with compiled programs cached per
// expression. Guards see the caller's scope inputs and the target level.
type GuardEvaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewGuardEvaluator creates a new guard evaluator with caching
func NewGuardEvaluator() *GuardEvaluator {
	return &GuardEvaluator{
		cache: make(map[string]cel.Program),
	}
}

// Compile validates a guard expression without evaluating it. Used at
// registration time so a bad guard is rejected before the rule is stored.
func (e *GuardEvaluator) Compile(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := e.program(expr)
	return err
}

// Evaluate runs a guard against the scope inputs. An empty guard always
// passes. A guard that evaluates to a non-boolean is an error.
func (e *GuardEvaluator) Evaluate(expr string, inputs map[string]string, level int) (bool, error) {
	if expr == "" {
		return true, nil
	}

	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	if inputs == nil {
		inputs = map[string]string{}
	}

	out, _, err := prg.Eval(map[string]any{
		"inputs": inputs,
		"level":  level,
	})
	if err != nil {
		return false, fmt.Errorf("guard evaluation failed: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("guard must evaluate to bool, got %T", out.Value())
	}

	return result, nil
}

// program returns the cached compiled program for an expression,
// compiling and caching it on first use
func (e *GuardEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()

	if exists {
		return prg, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("inputs", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("level", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidRuleDefinition, issues.Err(),
			"invalid guard expression %q", expr)
	}

	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build guard program: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()

	return prg, nil
}
