package registry

import (
	"sync"
	"time"

	"glucotrack/internal/codec"
	"glucotrack/internal/hub"
)

// Publisher receives storage and session events
type Publisher interface {
	Publish(event hub.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(hub.Event) {}

// Manager owns the backend and every live session. Sessions are
// independent; the manager only guards its own map.
type Manager struct {
	store  *codec.Store
	events Publisher
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager over store. A nil publisher discards events.
func NewManager(store *codec.Store, events Publisher) *Manager {
	if events == nil {
		events = noopPublisher{}
	}
	return &Manager{
		store:    store,
		events:   events,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Store returns the codec store shared by all sessions
func (m *Manager) Store() *codec.Store {
	return m.store
}

// Session returns the session for id, creating it on first use. Repeated
// calls with the same id return the same, already initialized session.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = newSession(id, m.store, m.events)
		m.sessions[id] = s
	}
	s.touch(m.now())
	return s
}

// Lookup returns the session for id without creating one
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Drop ends a session and discards everything it cached
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.purge()
	}
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
// were dropped
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.lastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.purge()
	}
	return len(stale)
}

// Invalidate evicts the resident values stored at path in every session, so
// the next load reads the file again. It returns the number of evicted
// values.
func (m *Manager) Invalidate(path string) int {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	n := 0
	for _, s := range all {
		n += s.invalidate(path)
	}
	return n
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
