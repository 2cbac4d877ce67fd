package agent

import (
	"context"
	"fmt"

	"github.com/redclaw-sec/redclaw/internal/llm"
	"github.com/redclaw-sec/redclaw/internal/tools"
)

// ItemKind classifies one item produced during an agent run.
type ItemKind string

const (
	ItemToolCall   ItemKind = "tool_call"
	ItemToolOutput ItemKind = "tool_call_output"
	ItemMessage    ItemKind = "message_output"
	ItemUnknown    ItemKind = "unknown"
)

// Item is one element of a run's ordered output stream. Exactly the fields
// for its kind are populated; consumers must treat everything as optional
// and fall back rather than assume.
type Item struct {
	Kind      ItemKind       `json:"kind"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	Output    string         `json:"output,omitempty"`
	Text      string         `json:"text,omitempty"`
}

// ModelResponse carries per-response accounting from the underlying model.
type ModelResponse struct {
	Usage llm.Usage `json:"usage"`
}

// RunResult is the opaque outcome of one agent run.
type RunResult struct {
	Items     []Item          `json:"items"`
	Responses []ModelResponse `json:"responses"`
}

// Runner executes one agent turn for one input message.
type Runner interface {
	Run(ctx context.Context, a *Agent, input string) (*RunResult, error)
}

// LoopRunner drives the reason-act-observe loop against a model client and a
// tool registry.
type LoopRunner struct {
	client   llm.Client
	registry *tools.Registry
}

// NewLoopRunner creates a runner over the given client and tool registry.
func NewLoopRunner(client llm.Client, registry *tools.Registry) *LoopRunner {
	return &LoopRunner{client: client, registry: registry}
}

// Run executes the loop: call the model, dispatch any requested tools, feed
// results back, and repeat until the model stops requesting tools or the
// agent's turn limit is reached.
func (r *LoopRunner) Run(ctx context.Context, a *Agent, input string) (*RunResult, error) {
	result := &RunResult{}

	messages := []llm.Message{{Role: llm.RoleUser, Content: input}}

	maxTurns := a.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	for turn := 0; turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := llm.ChatRequest{
			Model:       a.Model,
			Messages:    messages,
			System:      a.System,
			Tools:       r.registry.Definitions(a.Tools),
			MaxTokens:   a.MaxTokens,
			Temperature: a.Temperature,
		}
		if len(a.Tools) == 0 {
			req.Tools = nil
		}

		resp, err := r.client.Chat(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("run: turn %d: %w", turn+1, err)
		}

		result.Responses = append(result.Responses, ModelResponse{Usage: resp.Usage})

		if resp.Content != "" {
			result.Items = append(result.Items, Item{Kind: ItemMessage, Text: resp.Content})
		}

		if len(resp.ToolCalls) == 0 || resp.StopReason != llm.StopToolUse {
			break
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result.Items = append(result.Items, Item{
				Kind:      ItemToolCall,
				ToolName:  tc.Name,
				ToolInput: tc.Input,
			})
		}

		toolResults := r.registry.ExecuteConcurrent(ctx, resp.ToolCalls)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, tr := range toolResults {
			result.Items = append(result.Items, Item{Kind: ItemToolOutput, Output: tr.Content})
			messages = append(messages, llm.Message{
				Role:       llm.RoleUser,
				ToolResult: &tr,
			})
		}
	}

	return result, nil
}
