package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/redclaw-sec/redclaw/internal/llm"
	"github.com/redclaw-sec/redclaw/internal/tools"
)

type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, input map[string]any) (string, error) {
	s, _ := input["command"].(string)
	return "ran: " + s, nil
}

func testAgent(toolNames ...string) *Agent {
	return &Agent{
		Type:      "test",
		Model:     "test-model",
		System:    "You are a test agent.",
		Tools:     toolNames,
		MaxTokens: 1024,
		MaxTurns:  5,
	}
}

func TestLoopRunnerPlainResponse(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{
		Content:    "hi there",
		StopReason: llm.StopEndTurn,
		Usage:      llm.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
	})
	runner := NewLoopRunner(client, tools.NewRegistry())

	result, err := runner.Run(context.Background(), testAgent(), "hello")
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(result.Items))
	}
	if result.Items[0].Kind != ItemMessage || result.Items[0].Text != "hi there" {
		t.Errorf("item = %+v, want message %q", result.Items[0], "hi there")
	}
	if len(result.Responses) != 1 || result.Responses[0].Usage.TotalTokens != 14 {
		t.Errorf("responses = %+v, want one response with 14 total tokens", result.Responses)
	}
	if calls := client.Calls(); len(calls) != 1 {
		t.Errorf("model called %d times, want 1", len(calls))
	}
}

func TestLoopRunnerToolLoop(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(tools.GenericLinuxCommand,
		llm.ToolDefinition{Name: tools.GenericLinuxCommand}, echoExecutor{})

	client := llm.NewMockClient(
		llm.MockResponse{
			Content: "Let me check.",
			ToolCalls: []llm.ToolCall{{
				ID:    "tc1",
				Name:  tools.GenericLinuxCommand,
				Input: map[string]any{"command": "ls"},
			}},
			StopReason: llm.StopToolUse,
			Usage:      llm.Usage{TotalTokens: 20},
		},
		llm.MockResponse{
			Content:    "Done.",
			StopReason: llm.StopEndTurn,
			Usage:      llm.Usage{TotalTokens: 8},
		},
	)
	runner := NewLoopRunner(client, registry)

	result, err := runner.Run(context.Background(), testAgent(tools.GenericLinuxCommand), "list files")
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}

	kinds := make([]ItemKind, len(result.Items))
	for i, item := range result.Items {
		kinds[i] = item.Kind
	}
	want := []ItemKind{ItemMessage, ItemToolCall, ItemToolOutput, ItemMessage}
	if len(kinds) != len(want) {
		t.Fatalf("got item kinds %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("item %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
	if result.Items[1].ToolName != tools.GenericLinuxCommand {
		t.Errorf("tool call name = %q", result.Items[1].ToolName)
	}
	if result.Items[2].Output != "ran: ls" {
		t.Errorf("tool output = %q, want %q", result.Items[2].Output, "ran: ls")
	}
	if len(result.Responses) != 2 {
		t.Errorf("got %d responses, want 2", len(result.Responses))
	}

	// The second model call must carry the tool result back.
	calls := client.Calls()
	if len(calls) != 2 {
		t.Fatalf("model called %d times, want 2", len(calls))
	}
	last := calls[1].Messages[len(calls[1].Messages)-1]
	if last.ToolResult == nil || last.ToolResult.Content != "ran: ls" {
		t.Errorf("final message tool result = %+v, want %q", last.ToolResult, "ran: ls")
	}
}

func TestLoopRunnerTurnLimit(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register("loop_tool", llm.ToolDefinition{Name: "loop_tool"}, echoExecutor{})

	// The mock repeats its last response, so the model never stops asking
	// for tools and the turn limit must end the loop.
	client := llm.NewMockClient(llm.MockResponse{
		ToolCalls:  []llm.ToolCall{{ID: "t", Name: "loop_tool", Input: map[string]any{}}},
		StopReason: llm.StopToolUse,
	})
	runner := NewLoopRunner(client, registry)

	a := testAgent("loop_tool")
	a.MaxTurns = 3

	if _, err := runner.Run(context.Background(), a, "go"); err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if calls := client.Calls(); len(calls) != 3 {
		t.Errorf("model called %d times, want the turn limit of 3", len(calls))
	}
}

func TestLoopRunnerCancelled(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "never", StopReason: llm.StopEndTurn})
	runner := NewLoopRunner(client, tools.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, testAgent(), "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

func TestLoopRunnerModelError(t *testing.T) {
	wantErr := errors.New("api unavailable")
	client := llm.NewMockClient(llm.MockResponse{Error: wantErr})
	runner := NewLoopRunner(client, tools.NewRegistry())

	_, err := runner.Run(context.Background(), testAgent(), "hello")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run error = %v, want wrapped %v", err, wantErr)
	}
}
