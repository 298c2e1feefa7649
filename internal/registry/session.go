package registry

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"glucotrack/internal/codec"
	"glucotrack/internal/domain"
	"glucotrack/internal/hub"
)

// Entry is the registered location of one logical key
type Entry struct {
	Key       string           `json:"key"`
	Namespace domain.Namespace `json:"namespace"`
	File      string           `json:"file"`
	Path      string           `json:"path"`
	Location  domain.Location  `json:"location"`
}

// Session is the explicit per-session context: the identity, the values
// resident in memory and the key to location mapping. It lives until
// logout evicts its user data or the manager drops it.
type Session struct {
	id     string
	store  *codec.Store
	events Publisher

	mu       sync.Mutex
	identity domain.Identity
	state    domain.SessionState
	lastAuth domain.AuthStatus
	values   map[string]any
	entries  map[string]Entry
	warnings []string
	seen     time.Time
}

func newSession(id string, store *codec.Store, events Publisher) *Session {
	return &Session{
		id:       id,
		store:    store,
		events:   events,
		state:    domain.StateAnonymous,
		lastAuth: domain.AuthNoAttempt,
		values:   make(map[string]any),
		entries:  make(map[string]Entry),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// LoadAppData loads file from the shared namespace under key. A key that is
// already resident is returned from memory without touching the backend.
func (s *Session) LoadAppData(key, file string, def any, opts ...codec.Option) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(key, domain.NamespaceApplication, file, def, opts)
}

// LoadUserData loads file from the namespace of the session identity. Without
// an authenticated identity every cached user entry is evicted and
// domain.ErrUnauthenticated is returned; there is no fallback to shared data.
func (s *Session) LoadUserData(key, file string, def any, opts ...codec.Option) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.identity.Namespace()
	if !ok {
		s.evictUserLocked()
		return nil, fmt.Errorf("load %s: %w", key, domain.ErrUnauthenticated)
	}
	return s.load(key, ns, file, def, opts)
}

func (s *Session) load(key string, ns domain.Namespace, file string, def any, opts []codec.Option) (any, error) {
	if entry, ok := s.entries[key]; ok {
		if v, resident := s.values[key]; resident && entry.Namespace == ns && entry.File == file {
			return v, nil
		}
		// Same key, different location: one key maps to one location.
		delete(s.entries, key)
		delete(s.values, key)
	}

	p := ns.Resolve(file)
	value, err := s.store.Load(p, def, opts...)
	if err != nil {
		if value == nil || errors.Is(err, domain.ErrUnsupportedFormat) {
			return nil, err
		}
		// Degraded: hand out the default but keep the key unregistered so
		// a later write cannot clobber the real file with it.
		msg := fmt.Sprintf("%s could not be loaded, showing defaults: %v", file, err)
		log.Printf("Session %s: %s", s.id, msg)
		s.warnings = append(s.warnings, msg)
		s.publish(hub.EventDataDegraded, key, ns, err.Error())
		return value, nil
	}

	s.values[key] = value
	s.entries[key] = Entry{
		Key:       key,
		Namespace: ns,
		File:      file,
		Path:      p,
		Location:  s.store.Locate(p),
	}
	s.publish(hub.EventDataLoaded, key, ns, nil)
	return value, nil
}

// AppendRecord appends one row to the dataset or list held under key and
// writes it through to the registered location before returning. On any
// failure the session value is left unchanged.
func (s *Session) AppendRecord(key string, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, value, err := s.residentLocked(key)
	if err != nil {
		return err
	}

	var next any
	switch v := value.(type) {
	case *domain.Dataset:
		ds := v.Clone()
		ds.Append(rec)
		next = ds
	case []any:
		next = append(append(make([]any, 0, len(v)+1), v...), recordMap(rec))
	case []map[string]any:
		next = append(append(make([]map[string]any, 0, len(v)+1), v...), recordMap(rec))
	case []domain.Record:
		next = append(append(make([]domain.Record, 0, len(v)+1), v...), domain.Record(recordMap(rec)))
	default:
		return fmt.Errorf("append to %s (%T): %w", key, value, domain.ErrShapeMismatch)
	}

	if err := s.store.Save(entry.Path, next); err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	s.values[key] = next
	s.publish(hub.EventRecordAppended, key, entry.Namespace, nil)
	return nil
}

// Put replaces the session value of a registered key without writing it
func (s *Session) Put(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return &domain.KeyError{Key: key, Err: domain.ErrUnregisteredKey}
	}
	if err := s.checkAccessLocked(entry); err != nil {
		return err
	}
	s.values[key] = value
	return nil
}

// Value returns the resident value of key
func (s *Session) Value(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Dataset returns the resident value of key when it is a dataset
func (s *Session) Dataset(key string) (*domain.Dataset, bool) {
	v, ok := s.Value(key)
	if !ok {
		return nil, false
	}
	ds, ok := v.(*domain.Dataset)
	return ds, ok
}

// Entry returns the registered location of key
func (s *Session) Entry(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Entries lists the registered keys in key order
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Save flushes the session value of key to its registered location
func (s *Session) Save(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(key)
}

// SaveAll flushes every key that is both registered and resident
func (s *Session) SaveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		if _, ok := s.values[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		if err := s.saveLocked(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) saveLocked(key string) error {
	entry, value, err := s.residentLocked(key)
	if err != nil {
		return err
	}
	if err := s.store.Save(entry.Path, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	s.publish(hub.EventDataSaved, key, entry.Namespace, nil)
	return nil
}

func (s *Session) residentLocked(key string) (Entry, any, error) {
	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, nil, &domain.KeyError{Key: key, Err: domain.ErrUnregisteredKey}
	}
	if err := s.checkAccessLocked(entry); err != nil {
		return Entry{}, nil, err
	}
	value, ok := s.values[key]
	if !ok {
		return Entry{}, nil, &domain.KeyError{Key: key, Err: domain.ErrNotResident}
	}
	return entry, value, nil
}

// checkAccessLocked refuses user entries that do not belong to the current identity
func (s *Session) checkAccessLocked(entry Entry) error {
	if !entry.Namespace.IsUser() {
		return nil
	}
	ns, ok := s.identity.Namespace()
	if !ok || ns != entry.Namespace {
		return fmt.Errorf("%s: %w", entry.Key, domain.ErrUnauthenticated)
	}
	return nil
}

// Evict drops the resident value of key but keeps its registration
func (s *Session) Evict(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// EvictUserData drops every user namespace entry and value
func (s *Session) EvictUserData() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictUserLocked()
}

func (s *Session) evictUserLocked() int {
	n := 0
	for k, e := range s.entries {
		if e.Namespace.IsUser() {
			delete(s.entries, k)
			delete(s.values, k)
			n++
		}
	}
	if n > 0 {
		s.publish(hub.EventUserEvicted, "", "", n)
	}
	return n
}

func (s *Session) invalidate(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if e.Path != path {
			continue
		}
		if _, ok := s.values[k]; ok {
			delete(s.values, k)
			s.publish(hub.EventDataChanged, k, e.Namespace, nil)
			n++
		}
	}
	return n
}

// Warnings returns and clears the warnings collected by degraded loads
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.warnings
	s.warnings = nil
	return w
}

// Identity returns the current session identity
func (s *Session) Identity() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// State returns the identity state and the result of the last attempt
func (s *Session) State() (domain.SessionState, domain.AuthStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastAuth
}

// BeginAuthentication moves an anonymous session into Authenticating
func (s *Session) BeginAuthentication() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateAnonymous {
		s.state = domain.StateAuthenticating
	}
}

// CompleteAuthentication records the outcome of an attempt. Only
// AuthSuccess establishes an identity; switching identities evicts the
// previous identity's user data first.
func (s *Session) CompleteAuthentication(username string, status domain.AuthStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAuth = status
	if status != domain.AuthSuccess {
		if s.state != domain.StateAuthenticated {
			s.state = domain.StateAnonymous
		}
		return
	}

	if s.identity.Username != username {
		s.evictUserLocked()
	}
	s.identity = domain.Identity{Username: username, Authenticated: true}
	s.state = domain.StateAuthenticated
}

// ClearIdentity returns the session to Anonymous and evicts all user data
func (s *Session) ClearIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = domain.Identity{}
	s.state = domain.StateAnonymous
	s.lastAuth = domain.AuthNoAttempt
	s.evictUserLocked()
}

// Publish emits an event scoped to this session
func (s *Session) Publish(t hub.EventType, payload any) {
	s.events.Publish(hub.Event{Type: t, SessionID: s.id, Payload: payload})
}

func (s *Session) publish(t hub.EventType, key string, ns domain.Namespace, payload any) {
	s.events.Publish(hub.Event{Type: t, SessionID: s.id, Key: key, Namespace: string(ns), Payload: payload})
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.seen = t
	s.mu.Unlock()
}

func (s *Session) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

func (s *Session) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = domain.Identity{}
	s.state = domain.StateAnonymous
	s.values = make(map[string]any)
	s.entries = make(map[string]Entry)
}

func recordMap(rec domain.Record) map[string]any {
	m := make(map[string]any, len(rec))
	for k, v := range rec {
		m[k] = domain.NormalizeValue(v)
	}
	return m
}
