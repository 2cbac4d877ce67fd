// Package notify fans session-scoped events out to every live observer of a
// session.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Observer is one live connection subscribed to a session's event stream.
// Send must be safe to call from the hub's delivery goroutine.
type Observer interface {
	Send(payload []byte) error
	Close() error
}

// queueSize bounds the per-observer delivery queue. A slow observer that
// falls this far behind starts losing events; delivery is best-effort.
const queueSize = 64

// subscriber wraps an observer with a queue and a single pump goroutine, so
// one observer always receives a session's events in broadcast order while
// different observers proceed concurrently.
type subscriber struct {
	obs  Observer
	ch   chan []byte
	stop chan struct{}
	once sync.Once
}

func newSubscriber(obs Observer) *subscriber {
	s := &subscriber{
		obs:  obs,
		ch:   make(chan []byte, queueSize),
		stop: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *subscriber) pump() {
	for {
		select {
		case payload := <-s.ch:
			// A failed send means the connection is gone; the observer is
			// cleaned up on disconnect, so failures are swallowed here.
			_ = s.obs.Send(payload)
		case <-s.stop:
			return
		}
	}
}

func (s *subscriber) enqueue(payload []byte) {
	select {
	case s.ch <- payload:
	case <-s.stop:
	default:
		// Queue full: drop rather than block the broadcaster.
	}
}

func (s *subscriber) shutdown() {
	s.once.Do(func() { close(s.stop) })
}

// Hub maintains per-session observer sets and broadcasts JSON events to them.
type Hub struct {
	mu       sync.Mutex
	sessions map[string][]*subscriber
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[string][]*subscriber),
		logger:   logger,
	}
}

// Connect registers the observer under the session and sends the initial
// acknowledgement event.
func (h *Hub) Connect(obs Observer, sessionID string) {
	sub := newSubscriber(obs)

	h.mu.Lock()
	h.sessions[sessionID] = append(h.sessions[sessionID], sub)
	h.mu.Unlock()

	sub.enqueue(marshal(map[string]any{
		"type":       "connected",
		"session_id": sessionID,
	}))
}

// Disconnect removes the observer. Removing the last observer for a session
// drops the session's bucket entirely.
func (h *Hub) Disconnect(obs Observer, sessionID string) {
	h.mu.Lock()
	subs := h.sessions[sessionID]
	for i, sub := range subs {
		if sub.obs == obs {
			subs = append(subs[:i], subs[i+1:]...)
			sub.shutdown()
			break
		}
	}
	if len(subs) == 0 {
		delete(h.sessions, sessionID)
	} else {
		h.sessions[sessionID] = subs
	}
	h.mu.Unlock()
}

// Broadcast delivers payload to every observer of the session. Delivery to
// each destination is independent; one dead connection never blocks the rest
// or the caller. Broadcasting to a session with no observers is a no-op.
func (h *Hub) Broadcast(sessionID string, payload any) {
	data := marshal(payload)

	h.mu.Lock()
	subs := append([]*subscriber(nil), h.sessions[sessionID]...)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(data)
	}
}

// BroadcastAll delivers payload to every observer across every session.
func (h *Hub) BroadcastAll(payload any) {
	data := marshal(payload)

	h.mu.Lock()
	var subs []*subscriber
	for _, bucket := range h.sessions {
		subs = append(subs, bucket...)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(data)
	}
}

// ObserverCount returns the number of observers registered for a session.
func (h *Hub) ObserverCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// DisconnectAll closes every observer and clears all bookkeeping. Used only
// at process shutdown.
func (h *Hub) DisconnectAll() {
	h.mu.Lock()
	buckets := h.sessions
	h.sessions = make(map[string][]*subscriber)
	h.mu.Unlock()

	for _, subs := range buckets {
		for _, sub := range subs {
			sub.shutdown()
			if err := sub.obs.Close(); err != nil {
				h.logger.Debug("observer close failed", "error", err)
			}
		}
	}
}

func marshal(payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"type": "error", "error": err.Error()})
	}
	return data
}
