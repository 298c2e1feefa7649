package hub

import (
	"sync"
	"time"
)

// EventType defines the type of event
type EventType string

const (
	EventDataLoaded     EventType = "data_loaded"
	EventDataDegraded   EventType = "data_degraded"
	EventRecordAppended EventType = "record_appended"
	EventDataSaved      EventType = "data_saved"
	EventDataChanged    EventType = "data_changed"
	EventUserEvicted    EventType = "user_data_evicted"
	EventRegistered     EventType = "identity_registered"
	EventAuthenticated  EventType = "identity_authenticated"
	EventAuthFailed     EventType = "identity_auth_failed"
	EventLoggedOut      EventType = "identity_logged_out"
)

// Event represents a storage or session event. SessionID scopes delivery to
// the session that caused it.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"-"`
	Key       string      `json:"key,omitempty"`
	Namespace string      `json:"namespace,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	At        time.Time   `json:"at"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
