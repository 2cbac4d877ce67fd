package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// pingInterval is how often the server emits a keepalive ping event on the
// live channel. SSE carries no client-to-server payloads, so liveness is
// probed from the server side.
const pingInterval = 30 * time.Second

// sseObserver adapts one server-sent-events connection to notify.Observer.
type sseObserver struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher

	closed    chan struct{}
	closeOnce sync.Once
}

func newSSEObserver(w http.ResponseWriter, flusher http.Flusher) *sseObserver {
	return &sseObserver{
		w:       w,
		flusher: flusher,
		closed:  make(chan struct{}),
	}
}

// Send writes one event frame. Failures mean the connection is gone; the
// hub swallows them and the handler tears the observer down.
func (o *sseObserver) Send(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	select {
	case <-o.closed:
		return fmt.Errorf("sse: connection closed")
	default:
	}

	if _, err := fmt.Fprintf(o.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("sse: write: %w", err)
	}
	o.flusher.Flush()
	return nil
}

// Close marks the connection closed. It takes the send lock first, so it
// blocks until an in-flight Send finishes and every later Send fails fast
// instead of touching the response writer after the handler has returned.
func (o *sseObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeOnce.Do(func() { close(o.closed) })
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if _, ok := s.registry.Get(sessionID); !ok {
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	obs := newSSEObserver(w, flusher)
	s.registry.Touch(sessionID)
	s.hub.Connect(obs, sessionID)
	defer func() {
		// Close before Disconnect: the pump goroutine may still be delivering,
		// and the writer must be fenced off before the handler returns.
		_ = obs.Close()
		s.hub.Disconnect(obs, sessionID)
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-obs.closed:
			return
		case <-ticker.C:
			if err := obs.Send([]byte(`{"type":"ping"}`)); err != nil {
				return
			}
		}
	}
}
