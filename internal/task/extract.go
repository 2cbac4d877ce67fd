package task

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redclaw-sec/redclaw/internal/agent"
	"github.com/redclaw-sec/redclaw/internal/llm"
	"github.com/redclaw-sec/redclaw/internal/tools"
)

// maxToolOutputBytes caps each captured tool output to bound memory and
// notification payload size.
const maxToolOutputBytes = 2000

// maxCommandPreview caps the argument preview in a tool command description.
const maxCommandPreview = 100

// emptyCompletionResult is the placeholder for runs that produced nothing.
const emptyCompletionResult = "Task completed"

// extraction is the normalized view of an opaque agent run.
type extraction struct {
	InitialMessage string
	FinalMessage   string
	ToolsUsed      []string
	ToolCommands   map[string]string
	ToolOutputs    map[int]string
	Result         string
	Usage          llm.Usage
}

// extract classifies the run's ordered items and computes the task's primary
// result. Items with missing fields fall through to the next heuristic rather
// than failing the task.
func extract(res *agent.RunResult) extraction {
	ex := extraction{
		ToolCommands: make(map[string]string),
		ToolOutputs:  make(map[int]string),
	}
	if res == nil {
		ex.Result = emptyCompletionResult
		return ex
	}

	seen := make(map[string]bool)
	for _, item := range res.Items {
		switch item.Kind {
		case agent.ItemToolCall:
			if item.ToolName == "" {
				continue
			}
			if !seen[item.ToolName] {
				seen[item.ToolName] = true
				ex.ToolsUsed = append(ex.ToolsUsed, item.ToolName)
			}
			ex.ToolCommands[item.ToolName] = describeCommand(item.ToolName, item.ToolInput)

		case agent.ItemMessage:
			if item.Text == "" {
				continue
			}
			// First message is initial thinking; a later distinct message is
			// the final response. Purpose is inferred from position because
			// the run carries no explicit role tag.
			if ex.InitialMessage == "" {
				ex.InitialMessage = item.Text
			} else if item.Text != ex.InitialMessage {
				ex.FinalMessage = item.Text
			}

		case agent.ItemToolOutput:
			ex.ToolOutputs[len(ex.ToolOutputs)] = truncate(item.Output, maxToolOutputBytes)
		}
	}

	ex.Result = primaryResult(ex)

	for _, resp := range res.Responses {
		ex.Usage.Add(resp.Usage)
	}

	return ex
}

// primaryResult prefers concatenated tool outputs, then a tool summary, then
// message text, then the empty-completion placeholder.
func primaryResult(ex extraction) string {
	if len(ex.ToolOutputs) > 0 {
		parts := make([]string, len(ex.ToolOutputs))
		for idx, out := range ex.ToolOutputs {
			parts[idx] = out
		}
		return strings.Join(parts, "\n\n")
	}
	if len(ex.ToolsUsed) > 0 {
		return "Executed tools: " + strings.Join(ex.ToolsUsed, ", ")
	}
	if ex.FinalMessage != "" {
		return ex.FinalMessage
	}
	if ex.InitialMessage != "" {
		return ex.InitialMessage
	}
	return emptyCompletionResult
}

// describeCommand builds the one-line progress description for a tool call.
func describeCommand(toolName string, input map[string]any) string {
	if toolName == tools.GenericLinuxCommand {
		if cmd, ok := input["command"].(string); ok && cmd != "" {
			return "Executing Command: " + cmd
		}
	}
	if len(input) > 0 {
		args, err := json.Marshal(input)
		if err != nil {
			args = fmt.Appendf(nil, "%v", input)
		}
		return fmt.Sprintf("Executing %s: %s", toolName, truncate(string(args), maxCommandPreview))
	}
	return "Executing " + toolName
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
