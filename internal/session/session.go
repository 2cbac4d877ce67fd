// Package session owns the registry of active sessions and their message logs.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive     Status = "active"
	StatusIdle       Status = "idle"
	StatusTerminated Status = "terminated"
)

// ChatMessage is one turn in a session's log. Content is immutable after
// append.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ToolsUsed []string  `json:"tools_used"`
	TaskID    string    `json:"task_id,omitempty"`
}

// NewChatMessage creates a message with a fresh ID and timestamp.
func NewChatMessage(role, content string, toolsUsed []string, taskID string) ChatMessage {
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		ToolsUsed: toolsUsed,
		TaskID:    taskID,
	}
}

// Session describes one conversation bound to an agent handle. The registry
// owns the handle and the message log; callers receive Session snapshots and
// reach the handle through Registry.AgentHandle.
type Session struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	AgentType string         `json:"agent_type"`
	Model     string         `json:"model"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Config    map[string]any `json:"config,omitempty"`
}

// newSessionID creates a crypto-random session identifier with 128 bits of
// entropy, prefixed for readability.
func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return "sess_" + base64.RawURLEncoding.EncodeToString(b)
}
