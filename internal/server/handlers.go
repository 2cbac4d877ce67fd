package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/redclaw-sec/redclaw/internal/agent"
	"github.com/redclaw-sec/redclaw/internal/session"
	"github.com/redclaw-sec/redclaw/internal/task"
	"github.com/redclaw-sec/redclaw/internal/telemetry"
)

// sessionResponse is the wire shape of a session descriptor.
type sessionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AgentType string `json:"agent_type"`
	Model     string `json:"model"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	TaskCount int    `json:"task_count"`
}

func (s *Server) sessionResponse(sess session.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		Name:      sess.Name,
		AgentType: sess.AgentType,
		Model:     sess.Model,
		Status:    string(sess.Status),
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		UpdatedAt: sess.UpdatedAt.Format(time.RFC3339),
		TaskCount: len(s.orch.ListForSession(sess.ID)),
	}
}

// taskResponse is the wire shape of a task descriptor.
type taskResponse struct {
	ID          string   `json:"id"`
	SessionID   string   `json:"session_id"`
	Message     string   `json:"message"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	StartedAt   string   `json:"started_at,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
	Result      string   `json:"result,omitempty"`
	Error       string   `json:"error,omitempty"`
	ToolsUsed   []string `json:"tools_used"`
	Duration    float64  `json:"duration,omitempty"`
}

func toTaskResponse(t task.Task) taskResponse {
	resp := taskResponse{
		ID:        t.ID,
		SessionID: t.SessionID,
		Message:   t.Message,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		Result:    t.Result,
		Error:     t.Error,
		ToolsUsed: t.ToolsUsed,
		Duration:  t.Duration(),
	}
	if t.StartedAt != nil {
		resp.StartedAt = t.StartedAt.Format(time.RFC3339)
	}
	if t.CompletedAt != nil {
		resp.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func messagePayload(msg session.ChatMessage, isThinking bool) map[string]any {
	payload := map[string]any{
		"id":         msg.ID,
		"role":       msg.Role,
		"content":    msg.Content,
		"timestamp":  msg.Timestamp.Format(time.RFC3339Nano),
		"tools_used": msg.ToolsUsed,
		"task_id":    msg.TaskID,
	}
	if isThinking {
		payload["is_thinking"] = true
	}
	return payload
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"uptime":          time.Since(s.startTime).String(),
		"active_sessions": s.registry.Count(),
		"active_tasks":    s.orch.Count(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string         `json:"name"`
		AgentType string         `json:"agent_type"`
		Model     string         `json:"model"`
		Config    map[string]any `json:"config,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if req.Model == "" {
		req.Model = s.currentConfig().DefaultModel
	}

	sess, err := s.registry.Create(req.Name, req.AgentType, req.Model, req.Config)
	if err != nil {
		if errors.Is(err, agent.ErrUnknownAgentType) {
			writeError(w, http.StatusBadRequest, "invalid_agent_type", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.logger.Info("session created", "session_id", sess.ID, "agent_type", sess.AgentType, "model", sess.Model)
	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.registry.List()
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, s.sessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	sess, ok := s.registry.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	userMsg := session.NewChatMessage("user", req.Content, nil, "")
	s.registry.Append(sessionID, userMsg)

	handle, ok := s.registry.AgentHandle(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
		return
	}

	timeout := s.currentConfig().MessageTimeout()
	created := s.orch.Create(sessionID, req.Content, handle)
	finished := s.orch.WaitFor(created.ID, timeout)
	completed, _ := s.orch.Get(created.ID)

	// Every failure mode yields a chat-shaped reply; the transcript stays
	// coherent instead of surfacing protocol errors.
	var content string
	switch {
	case !finished:
		content = fmt.Sprintf("Task timed out after %.0f seconds", timeout.Seconds())
	case completed.Error != "":
		content = "Error: " + completed.Error
	case completed.Metadata.FinalResponse != "":
		content = completed.Metadata.FinalResponse
	case completed.Metadata.InitialThinking != "":
		content = completed.Metadata.InitialThinking
	default:
		content = "Agent completed but no response generated"
	}

	toolsUsed := completed.ToolsUsed

	if len(toolsUsed) > 0 && len(completed.Metadata.ToolCommands) > 0 {
		thinking := session.NewChatMessage("assistant", joinCommands(completed.Metadata.ToolCommands), nil, "")
		s.registry.Append(sessionID, thinking)
		s.hub.Broadcast(sessionID, map[string]any{
			"type":    "message_added",
			"message": messagePayload(thinking, true),
		})
	}

	taskID := ""
	if len(toolsUsed) > 0 {
		taskID = completed.ID
	}
	assistant := session.NewChatMessage("assistant", content, toolsUsed, taskID)
	s.registry.Append(sessionID, assistant)

	s.hub.Broadcast(sessionID, map[string]any{
		"type":    "message_added",
		"message": messagePayload(assistant, false),
	})

	if len(toolsUsed) > 0 {
		s.hub.Broadcast(sessionID, map[string]any{
			"type": "task_created",
			"task": completed,
		})
	}

	telemetry.SessionLogger(s.logger, sessionID, sess.AgentType).Info("message handled",
		"task_id", created.ID,
		"status", string(completed.Status),
		"tools", len(toolsUsed))

	writeJSON(w, http.StatusOK, map[string]any{
		"message": messagePayload(assistant, false),
	})
}

// joinCommands renders the tool command descriptions in a stable order.
func joinCommands(commands map[string]string) string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, commands[name])
	}
	return strings.Join(lines, "\n")
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, ok := s.registry.Messages(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
		return
	}

	out := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messagePayload(msg, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handleListSessionTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.orch.ListForSession(r.PathValue("id"))

	// Only tool-using tasks appear in the session task list.
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		if len(t.ToolsUsed) > 0 {
			out = append(out, toTaskResponse(t))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.orch.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if !s.orch.Cancel(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "not_found", "Task not found or already completed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task cancelled successfully"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	defs := s.factory.Definitions()
	out := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		tools := def.Tools
		if tools == nil {
			tools = []string{}
		}
		out = append(out, map[string]any{
			"name":         def.Name,
			"display_name": def.DisplayName,
			"description":  def.Description,
			"tools":        tools,
			"capabilities": tools,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	cfg := s.currentConfig()
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  cfg.CatalogModels(),
		"current": cfg.DefaultModel,
	})
}
