package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/redclaw-sec/redclaw/internal/agent"
)

func newTestRegistry() *Registry {
	return NewRegistry(agent.NewFactory(agent.BuiltinDefinitions()))
}

func TestCreateAndGet(t *testing.T) {
	reg := newTestRegistry()

	sess, err := reg.Create("recon", "red_teamer", "claude-3-5-sonnet-20241022", nil)
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}
	if !strings.HasPrefix(sess.ID, "sess_") {
		t.Errorf("session ID %q missing sess_ prefix", sess.ID)
	}
	if sess.Status != StatusActive {
		t.Errorf("Status = %q, want %q", sess.Status, StatusActive)
	}
	if sess.CreatedAt.IsZero() || !sess.CreatedAt.Equal(sess.UpdatedAt) {
		t.Errorf("timestamps not initialized together: created=%v updated=%v", sess.CreatedAt, sess.UpdatedAt)
	}

	got, ok := reg.Get(sess.ID)
	if !ok {
		t.Fatal("Get did not find the created session")
	}
	if got.AgentType != "red_teamer" {
		t.Errorf("AgentType = %q, want %q", got.AgentType, "red_teamer")
	}
}

func TestCreateUnknownAgentType(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Create("bad", "not_an_agent", "model", nil)
	if !errors.Is(err, agent.ErrUnknownAgentType) {
		t.Fatalf("Create error = %v, want ErrUnknownAgentType", err)
	}
	if reg.Count() != 0 {
		t.Errorf("failed create should not register a session, count = %d", reg.Count())
	}
}

func TestSessionIDsUnique(t *testing.T) {
	reg := newTestRegistry()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sess, err := reg.Create("s", "echo", "model", nil)
		if err != nil {
			t.Fatalf("Create returned unexpected error: %v", err)
		}
		if seen[sess.ID] {
			t.Fatalf("duplicate session ID %q", sess.ID)
		}
		seen[sess.ID] = true
	}
}

func TestDeleteIdempotent(t *testing.T) {
	reg := newTestRegistry()

	sess, err := reg.Create("s", "echo", "model", nil)
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}

	if !reg.Delete(sess.ID) {
		t.Error("first Delete should report true")
	}
	if reg.Delete(sess.ID) {
		t.Error("second Delete should report false")
	}
	if _, ok := reg.Get(sess.ID); ok {
		t.Error("deleted session still visible")
	}
	if reg.Delete("sess_missing") {
		t.Error("Delete of unknown session should report false")
	}
}

func TestAppendAndMessages(t *testing.T) {
	reg := newTestRegistry()

	sess, err := reg.Create("s", "echo", "model", nil)
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}

	first := NewChatMessage("user", "hello", nil, "")
	second := NewChatMessage("assistant", "hi there", []string{"generic_linux_command"}, "task-1")

	if !reg.Append(sess.ID, first) {
		t.Fatal("Append to existing session should report true")
	}
	reg.Append(sess.ID, second)

	msgs, ok := reg.Messages(sess.ID)
	if !ok {
		t.Fatal("Messages did not find the session")
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi there" {
		t.Errorf("messages out of append order: %q, %q", msgs[0].Content, msgs[1].Content)
	}
	if msgs[1].TaskID != "task-1" {
		t.Errorf("TaskID = %q, want %q", msgs[1].TaskID, "task-1")
	}

	// The returned slice is a copy.
	msgs[0].Content = "mutated"
	again, _ := reg.Messages(sess.ID)
	if again[0].Content != "hello" {
		t.Error("Messages returned a live reference into the registry")
	}

	if reg.Append("sess_missing", first) {
		t.Error("Append to unknown session should report false")
	}
}

func TestAgentHandleBorrowed(t *testing.T) {
	reg := newTestRegistry()

	sess, err := reg.Create("s", "echo", "model", nil)
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}

	h1, ok := reg.AgentHandle(sess.ID)
	if !ok || h1 == nil {
		t.Fatal("AgentHandle did not return the handle")
	}
	h2, _ := reg.AgentHandle(sess.ID)
	if h1 != h2 {
		t.Error("AgentHandle should return the same handle for the session's lifetime")
	}
	if _, ok := reg.AgentHandle("sess_missing"); ok {
		t.Error("AgentHandle for unknown session should report false")
	}
}

func TestNewChatMessageDefaults(t *testing.T) {
	msg := NewChatMessage("user", "hi", nil, "")
	if msg.ID == "" {
		t.Error("message ID should be assigned")
	}
	if msg.ToolsUsed == nil {
		t.Error("ToolsUsed should default to an empty slice, not nil")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}
