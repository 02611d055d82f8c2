package orchestrator

import (
	"sync"
	"time"

	"github.com/elee1766/gauntletfuse/src/storage"
)

// EventType names what happened to a run.
type EventType string

const (
	EventStatus        EventType = "status"
	EventRoundStarted  EventType = "round_started"
	EventMessage       EventType = "message"
	EventRoundFinished EventType = "round_finished"
	EventFused         EventType = "fused"
)

// Event is one progress notification for a run.
type Event struct {
	RunID       string              `json:"run_id"`
	Type        EventType           `json:"type"`
	Time        time.Time           `json:"time"`
	Status      storage.RunStatus   `json:"status,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	RoundNumber int                 `json:"round_number,omitempty"`
	Phase       storage.Phase       `json:"phase,omitempty"`
	RoundStatus storage.RoundStatus `json:"round_status,omitempty"`
	Speaker     string              `json:"speaker,omitempty"`
	Role        storage.MessageRole `json:"role,omitempty"`
	Content     string              `json:"content,omitempty"`
}

// Terminal reports whether no event follows this one.
func (e Event) Terminal() bool {
	return e.Type == EventStatus && e.Status.Terminal()
}

const subscriberBuffer = 64

// Hub fans run events out to subscribers. A slow subscriber loses events
// rather than stalling the run. The zero Hub is not usable; a nil *Hub
// drops everything.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel receiving the run's events and a function
// that unsubscribes and closes it.
func (h *Hub) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan Event]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[runID], ch)
			if len(h.subs[runID]) == 0 {
				delete(h.subs, runID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to the run's current subscribers.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns how many subscribers the run has.
func (h *Hub) Subscribers(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[runID])
}
