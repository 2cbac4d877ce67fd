package session

import (
	"sync"
	"time"

	"github.com/redclaw-sec/redclaw/internal/agent"
)

// AgentFactory constructs a fresh agent handle for a new session.
type AgentFactory interface {
	New(agentType, model string, config map[string]any) (*agent.Agent, error)
}

type record struct {
	sess     Session
	agent    *agent.Agent
	messages []ChatMessage
}

// Registry owns the set of active sessions. All map access is serialized on a
// single mutex; callers receive snapshots, never interior pointers.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*record
	factory  AgentFactory
}

// NewRegistry creates an empty registry backed by the given agent factory.
func NewRegistry(factory AgentFactory) *Registry {
	return &Registry{
		sessions: make(map[string]*record),
		factory:  factory,
	}
}

// Create constructs a new agent handle and registers a session around it.
// Construction failures surface agent.ErrUnknownAgentType.
func (r *Registry) Create(name, agentType, model string, config map[string]any) (Session, error) {
	handle, err := r.factory.New(agentType, model, config)
	if err != nil {
		return Session{}, err
	}

	cfg := make(map[string]any, len(config))
	for k, v := range config {
		cfg[k] = v
	}

	now := time.Now().UTC()
	rec := &record{
		sess: Session{
			ID:        newSessionID(),
			Name:      name,
			AgentType: agentType,
			Model:     model,
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
			Config:    cfg,
		},
		agent: handle,
	}

	r.mu.Lock()
	r.sessions[rec.sess.ID] = rec
	r.mu.Unlock()

	return rec.sess, nil
}

// Get returns a snapshot of the session, if present.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return rec.sess, true
}

// AgentHandle returns the session's agent handle. The handle is borrowed;
// the registry retains ownership for the session's lifetime.
func (r *Registry) AgentHandle(id string) (*agent.Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return rec.agent, true
}

// List returns a snapshot of all sessions. Ordering is unspecified.
func (r *Registry) List() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, rec.sess)
	}
	return out
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Delete marks the session terminated and removes it in one critical section.
// It is idempotent and reports whether a session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return false
	}
	rec.sess.Status = StatusTerminated
	delete(r.sessions, id)
	return true
}

// Touch bumps the session's updated_at timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.sessions[id]; ok {
		rec.sess.UpdatedAt = time.Now().UTC()
	}
}

// Append adds a message to the session log and bumps updated_at. It reports
// whether the session exists.
func (r *Registry) Append(id string, msg ChatMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return false
	}
	rec.messages = append(rec.messages, msg)
	rec.sess.UpdatedAt = time.Now().UTC()
	return true
}

// Messages returns a copy of the session's message log in append order.
func (r *Registry) Messages(id string) ([]ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return append([]ChatMessage(nil), rec.messages...), true
}
