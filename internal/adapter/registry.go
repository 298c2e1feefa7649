package adapter

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"glucotrack/internal/domain"
)

// Config selects and configures one backend
type Config struct {
	Kind     domain.BackendKind
	Root     string
	URL      string
	Username string
	Password string
	DBPath   string
}

// ErrUnknownBackend is returned when no constructor is registered for a kind
var ErrUnknownBackend = errors.New("unknown storage backend")

// OpenFunc constructs a backend from configuration
type OpenFunc func(cfg Config) (FS, error)

// Registry maps backend kinds to their constructors
type Registry struct {
	mu      sync.RWMutex
	openers map[domain.BackendKind]OpenFunc
}

// NewRegistry creates a registry with the built-in backends registered
func NewRegistry() *Registry {
	r := &Registry{openers: make(map[domain.BackendKind]OpenFunc)}
	r.Register(domain.BackendLocal, func(cfg Config) (FS, error) {
		return NewLocal(cfg.Root)
	})
	r.Register(domain.BackendWebDAV, func(cfg Config) (FS, error) {
		return NewWebDAV(WebDAVConfig{
			BaseURL:  cfg.URL,
			Username: cfg.Username,
			Password: cfg.Password,
			Root:     cfg.Root,
		})
	})
	r.Register(domain.BackendSQLite, func(cfg Config) (FS, error) {
		return NewSQLite(cfg.DBPath)
	})
	return r
}

// Register adds or replaces the constructor for a kind
func (r *Registry) Register(kind domain.BackendKind, open OpenFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[kind] = open
}

// Kinds lists the registered backend kinds
func (r *Registry) Kinds() []domain.BackendKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.BackendKind, 0, len(r.openers))
	for k := range r.openers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Open constructs the backend named by cfg.Kind
func (r *Registry) Open(cfg Config) (FS, error) {
	r.mu.RLock()
	open, ok := r.openers[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownBackend, cfg.Kind, r.Kinds())
	}

	fsys, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Kind, err)
	}
	log.Printf("Storage backend ready: %s (%s)", fsys.Kind(), fsys.Root())
	return fsys, nil
}

// Open constructs a backend using the built-in registry
func Open(cfg Config) (FS, error) {
	return NewRegistry().Open(cfg)
}
