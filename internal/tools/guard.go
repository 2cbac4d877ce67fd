package tools

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/redclaw-sec/redclaw/internal/llm"
)

// Guard evaluates a boolean expression against every tool call before it is
// dispatched. The expression sees the tool name and its input map, e.g.
//
//	tool != "generic_linux_command" || !(input.command contains "rm -rf")
type Guard struct {
	source  string
	program *vm.Program
}

type guardEnv struct {
	Tool  string         `expr:"tool"`
	Input map[string]any `expr:"input"`
}

// NewGuard compiles a guard expression. An empty source yields a nil guard,
// which allows everything.
func NewGuard(source string) (*Guard, error) {
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(guardEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("guard: compile %q: %w", source, err)
	}
	return &Guard{source: source, program: program}, nil
}

// Allow reports whether the guard permits the tool call. A nil guard permits
// every call.
func (g *Guard) Allow(call llm.ToolCall) (bool, error) {
	if g == nil {
		return true, nil
	}
	input := call.Input
	if input == nil {
		input = map[string]any{}
	}
	out, err := expr.Run(g.program, guardEnv{Tool: call.Name, Input: input})
	if err != nil {
		return false, fmt.Errorf("guard: evaluate %q: %w", g.source, err)
	}
	allowed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("guard: expression %q did not yield a boolean", g.source)
	}
	return allowed, nil
}

// GuardedExecutor wraps an executor with a guard check.
type GuardedExecutor struct {
	guard *Guard
	next  Executor
	name  string
}

// WithGuard wraps executor so that calls rejected by the guard fail instead of
// running.
func WithGuard(name string, guard *Guard, executor Executor) Executor {
	if guard == nil {
		return executor
	}
	return &GuardedExecutor{guard: guard, next: executor, name: name}
}

// Execute checks the guard and then delegates.
func (e *GuardedExecutor) Execute(ctx context.Context, input map[string]any) (string, error) {
	allowed, err := e.guard.Allow(llm.ToolCall{Name: e.name, Input: input})
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("tool %q blocked by guard policy", e.name)
	}
	return e.next.Execute(ctx, input)
}
