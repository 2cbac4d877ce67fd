package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/redclaw-sec/redclaw/internal/llm"
)

type staticExecutor struct {
	output string
	err    error
}

func (e *staticExecutor) Execute(_ context.Context, _ map[string]any) (string, error) {
	return e.output, e.err
}

func TestRegistryExecute(t *testing.T) {
	reg := NewRegistry()
	reg.Register("lookup", llm.ToolDefinition{Name: "lookup"}, &staticExecutor{output: "found"})

	out, err := reg.Execute(context.Background(), llm.ToolCall{ID: "t1", Name: "lookup"})
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if out != "found" {
		t.Errorf("output = %q, want %q", out, "found")
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Execute(context.Background(), llm.ToolCall{Name: "missing"})
	if err == nil {
		t.Fatal("Execute with unregistered tool should return an error")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Errorf("error %q does not mention registration", err.Error())
	}
}

func TestRegistryExecuteConcurrent(t *testing.T) {
	reg := NewRegistry()
	reg.Register("ok", llm.ToolDefinition{Name: "ok"}, &staticExecutor{output: "fine"})
	reg.Register("bad", llm.ToolDefinition{Name: "bad"}, &staticExecutor{err: fmt.Errorf("boom")})

	calls := []llm.ToolCall{
		{ID: "c1", Name: "ok"},
		{ID: "c2", Name: "bad"},
		{ID: "c3", Name: "ok"},
	}
	results := reg.ExecuteConcurrent(context.Background(), calls)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Content != "fine" || results[0].IsError {
		t.Errorf("results[0] = %+v, want non-error %q", results[0], "fine")
	}
	if !results[1].IsError {
		t.Errorf("results[1] should be an error result")
	}
	if results[1].ToolUseID != "c2" {
		t.Errorf("results[1].ToolUseID = %q, want %q", results[1].ToolUseID, "c2")
	}
	if results[2].Content != "fine" {
		t.Errorf("results[2].Content = %q, want %q", results[2].Content, "fine")
	}
}

func TestRegistryDefinitionsFilter(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", llm.ToolDefinition{Name: "a"}, &staticExecutor{})
	reg.Register("b", llm.ToolDefinition{Name: "b"}, &staticExecutor{})

	defs := reg.Definitions([]string{"b", "nope"})
	if len(defs) != 1 {
		t.Fatalf("got %d definitions, want 1", len(defs))
	}
	if defs[0].Name != "b" {
		t.Errorf("definition name = %q, want %q", defs[0].Name, "b")
	}

	all := reg.Definitions(nil)
	if len(all) != 2 {
		t.Errorf("got %d definitions for empty filter, want 2", len(all))
	}
}
