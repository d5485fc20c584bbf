package timer

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Event announces that a limited session reached its time limit
type Event struct {
	SessionID      string    `json:"session_id"`
	DeviceID       string    `json:"device_id"`
	DeviceName     string    `json:"device_name"`
	TimeLimit      int       `json:"time_limit"`
	ElapsedMinutes int       `json:"elapsed_minutes"`
	At             time.Time `json:"at"`
}

// Action is the operator's answer to an expiry event
type Action string

const (
	ActionStop      Action = "stop"
	ActionExtend    Action = "extend"
	ActionUnlimited Action = "unlimited"
)

var (
	ErrUnknownAction    = errors.New("unknown expiry action")
	ErrMissingMinutes   = errors.New("extend requires a positive number of minutes")
	ErrMissingSessionID = errors.New("session id is required")
)

// Response is the typed command the presentation layer sends back for an Event
type Response struct {
	SessionID string `json:"session_id"`
	Action    Action `json:"action"`
	Minutes   int    `json:"minutes,omitempty"`
}

// Validate checks that the response can be dispatched
func (r Response) Validate() error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	switch r.Action {
	case ActionStop, ActionUnlimited:
		return nil
	case ActionExtend:
		if r.Minutes <= 0 {
			return ErrMissingMinutes
		}
		return nil
	default:
		return ErrUnknownAction
	}
}

// Notifier receives expiry events. Notify must not block.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Event)

// Notify calls f(event)
func (f NotifierFunc) Notify(event Event) {
	f(event)
}

// Hub fans expiry events out to subscribers
type Hub struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	buffer      int
	logger      *slog.Logger
}

// NewHub creates a hub whose subscriber channels hold up to buffer events
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subscribers: make(map[int]chan Event),
		buffer:      buffer,
		logger:      logger.With("component", "expiry-hub"),
	}
}

// Subscribe registers a new listener. The returned function unsubscribes
// and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers, id)
			close(ch)
		})
	}
}

// Notify delivers the event to every subscriber without blocking
func (h *Hub) Notify(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.logger.Warn("Subscriber buffer full, dropping expiry event",
				"subscriber", id,
				"session_id", event.SessionID)
		}
	}
}

// Subscribers returns the number of active subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

var (
	_ Notifier = (*Hub)(nil)
	_ Notifier = NotifierFunc(nil)
)
