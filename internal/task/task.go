// Package task implements the orchestrator that supervises one unit of agent
// work per inbound message: lifecycle, cancellation, timeout, result
// extraction, and terminal notification.
package task

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/redclaw-sec/redclaw/internal/llm"
)

// Status is the task state machine: pending → running → terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// LogEntry is one diagnostic record attached to a task.
type LogEntry struct {
	Type      string    `json:"type"`
	Tool      string    `json:"tool,omitempty"`
	Error     string    `json:"error,omitempty"`
	Trace     string    `json:"traceback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata holds sub-fields extracted from the agent run for detailed views.
type Metadata struct {
	InitialThinking string            `json:"initial_thinking,omitempty"`
	FinalResponse   string            `json:"final_response,omitempty"`
	ToolCommands    map[string]string `json:"tool_commands,omitempty"`
	ToolOutputs     map[int]string    `json:"tool_outputs,omitempty"`
}

// Task represents one invocation of the agent for one message. Task IDs are
// ULIDs, so lexicographic order is creation order.
type Task struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Message     string     `json:"message"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Logs        []LogEntry `json:"logs"`
	ToolsUsed   []string   `json:"tools_used"`
	TokenUsage  llm.Usage  `json:"token_usage"`
	Metadata    Metadata   `json:"metadata"`
}

// Duration returns the execution time in seconds, or zero if unknown.
func (t *Task) Duration() float64 {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt).Seconds()
}

// snapshot deep-copies the task so callers never alias orchestrator state.
func (t *Task) snapshot() Task {
	out := *t
	out.Logs = append([]LogEntry(nil), t.Logs...)
	out.ToolsUsed = append([]string(nil), t.ToolsUsed...)
	if t.StartedAt != nil {
		v := *t.StartedAt
		out.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		out.CompletedAt = &v
	}
	if t.Metadata.ToolCommands != nil {
		out.Metadata.ToolCommands = make(map[string]string, len(t.Metadata.ToolCommands))
		for k, v := range t.Metadata.ToolCommands {
			out.Metadata.ToolCommands[k] = v
		}
	}
	if t.Metadata.ToolOutputs != nil {
		out.Metadata.ToolOutputs = make(map[int]string, len(t.Metadata.ToolOutputs))
		for k, v := range t.Metadata.ToolOutputs {
			out.Metadata.ToolOutputs[k] = v
		}
	}
	return out
}

func newTaskID() string {
	return ulid.Make().String()
}
