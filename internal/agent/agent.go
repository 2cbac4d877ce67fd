// Package agent provides the agent catalog, the factory that binds an agent
// handle to a session, and the runner that executes one agent turn.
package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownAgentType is returned when the factory cannot construct the
// requested agent type. Callers can match it with errors.Is.
var ErrUnknownAgentType = errors.New("unknown agent type")

// Agent is a configured agent handle. A handle is exclusively owned by one
// session; the orchestrator borrows it for the duration of each run.
type Agent struct {
	Type        string   `json:"type"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Model       string   `json:"model"`
	System      string   `json:"system"`
	Tools       []string `json:"tools"`

	// Per-call inference parameters, mutable via session config overrides.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens"`
	Stream      bool     `json:"stream"`
	MaxTurns    int      `json:"max_turns"`
}

// Definition describes a catalog entry from which handles are constructed.
type Definition struct {
	Name        string
	DisplayName string
	Description string
	System      string
	Tools       []string
	MaxTurns    int
}

// Factory constructs agent handles from a catalog of definitions.
type Factory struct {
	mu      sync.RWMutex
	catalog map[string]Definition
}

// NewFactory creates a factory over the given definitions.
func NewFactory(defs []Definition) *Factory {
	catalog := make(map[string]Definition, len(defs))
	for _, d := range defs {
		catalog[d.Name] = d
	}
	return &Factory{catalog: catalog}
}

// Definitions returns the catalog sorted by name.
func (f *Factory) Definitions() []Definition {
	f.mu.RLock()
	defer f.mu.RUnlock()

	defs := make([]Definition, 0, len(f.catalog))
	for _, d := range f.catalog {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// New constructs a fresh agent handle for the given type and model, applying
// optional overrides from config (temperature, max_tokens, stream).
func (f *Factory) New(agentType, model string, config map[string]any) (*Agent, error) {
	f.mu.RLock()
	def, ok := f.catalog[agentType]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownAgentType, agentType, strings.Join(f.names(), ", "))
	}

	a := &Agent{
		Type:        def.Name,
		DisplayName: def.DisplayName,
		Description: def.Description,
		Model:       model,
		System:      def.System,
		Tools:       append([]string(nil), def.Tools...),
		MaxTokens:   4096,
		MaxTurns:    def.MaxTurns,
	}
	if a.MaxTurns <= 0 {
		a.MaxTurns = 10
	}

	if v, ok := config["temperature"]; ok {
		if t, ok := toFloat(v); ok {
			a.Temperature = &t
		}
	}
	if v, ok := config["max_tokens"]; ok {
		if n, ok := toFloat(v); ok && n > 0 {
			a.MaxTokens = int(n)
		}
	}
	if v, ok := config["stream"].(bool); ok {
		a.Stream = v
	}

	return a, nil
}

func (f *Factory) names() []string {
	names := make([]string, 0, len(f.catalog))
	for name := range f.catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toFloat normalizes JSON-decoded numbers, which arrive as float64, int, or
// json.Number-like strings depending on the decoder path.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
