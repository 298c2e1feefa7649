package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"glucotrack/internal/domain"
	"glucotrack/internal/hub"
	"glucotrack/internal/registry"
)

const (
	// DefaultFile is the credentials document below the storage root
	DefaultFile = "credentials.yaml"

	credentialsKey = "credentials"
	usersField     = "usernames"
)

// Scheme selects how passwords are stored
type Scheme string

const (
	// SchemePlain stores passwords as supplied
	SchemePlain Scheme = "plain"
	// SchemeBcrypt stores bcrypt hashes
	SchemeBcrypt Scheme = "bcrypt"
)

// ParseScheme maps a configuration value to a Scheme, defaulting to plain
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemePlain:
		return SchemePlain, nil
	case SchemeBcrypt:
		return SchemeBcrypt, nil
	}
	return "", fmt.Errorf("unknown password scheme %q", s)
}

var (
	// ErrInvalidInput is returned for registrations missing required fields
	ErrInvalidInput = errors.New("invalid registration")

	// ErrCredentialsUnavailable is returned when the credentials document cannot be read
	ErrCredentialsUnavailable = fmt.Errorf("credentials unavailable: %w", domain.ErrBackendUnavailable)
)

// Store is the credential store. It holds no state of its own; every call
// works on the session passed in.
type Store struct {
	file   string
	scheme Scheme
	cost   int
	now    func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithFile overrides the credentials document path
func WithFile(file string) Option {
	return func(s *Store) { s.file = file }
}

// WithScheme selects the password scheme for new registrations
func WithScheme(scheme Scheme) Option {
	return func(s *Store) { s.scheme = scheme }
}

// WithBcryptCost overrides the bcrypt cost
func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

// NewStore creates a credential store
func NewStore(opts ...Option) *Store {
	s := &Store{
		file:   DefaultFile,
		scheme: SchemePlain,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput describes a new identity
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Name     string
	Metadata map[string]string
}

// Register adds a new identity and saves the credentials document before
// returning. An existing username is left untouched and yields
// domain.ErrDuplicateIdentity.
func (s *Store) Register(sess *registry.Session, in RegisterInput) (domain.Credential, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return domain.Credential{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return domain.Credential{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	doc, users, err := s.load(sess)
	if err != nil {
		return domain.Credential{}, err
	}
	if _, exists := users[in.Username]; exists {
		return domain.Credential{}, fmt.Errorf("register %q: %w", in.Username, domain.ErrDuplicateIdentity)
	}

	stored, err := s.hash(in.Password)
	if err != nil {
		return domain.Credential{}, err
	}

	cred := domain.Credential{
		Username:  in.Username,
		Name:      in.Name,
		Email:     in.Email,
		Password:  stored,
		CreatedAt: s.now().UTC().Truncate(time.Second),
		Metadata:  in.Metadata,
	}
	users[in.Username] = credentialMap(cred)

	if err := sess.Put(credentialsKey, doc); err != nil {
		delete(users, in.Username)
		return domain.Credential{}, err
	}
	if err := sess.Save(credentialsKey); err != nil {
		delete(users, in.Username)
		return domain.Credential{}, fmt.Errorf("register %q: %w", in.Username, err)
	}

	sess.Publish(hub.EventRegistered, map[string]string{"username": in.Username})
	return cred, nil
}

// Authenticate checks a username and password. Empty input is no attempt and
// leaves the session as it is; otherwise only AuthSuccess sets the identity.
func (s *Store) Authenticate(sess *registry.Session, username, password string) (domain.AuthStatus, error) {
	username = strings.TrimSpace(username)
	if username == "" && password == "" {
		return domain.AuthNoAttempt, nil
	}

	sess.BeginAuthentication()
	_, users, err := s.load(sess)
	if err != nil {
		sess.CompleteAuthentication(username, domain.AuthNoAttempt)
		return domain.AuthNoAttempt, err
	}

	status := domain.AuthWrongCredentials
	if raw, ok := users[username]; ok {
		cred := credentialFromMap(username, raw)
		if verify(cred.Password, password) {
			status = domain.AuthSuccess
		}
	}
	sess.CompleteAuthentication(username, status)

	if status == domain.AuthSuccess {
		sess.Publish(hub.EventAuthenticated, map[string]string{"username": username})
	} else {
		sess.Publish(hub.EventAuthFailed, nil)
	}
	return status, nil
}

// Logout clears the session identity and evicts its user data
func (s *Store) Logout(sess *registry.Session) {
	sess.ClearIdentity()
	sess.Publish(hub.EventLoggedOut, nil)
}

// Lookup returns the stored record of username
func (s *Store) Lookup(sess *registry.Session, username string) (domain.Credential, bool, error) {
	_, users, err := s.load(sess)
	if err != nil {
		return domain.Credential{}, false, err
	}
	raw, ok := users[username]
	if !ok {
		return domain.Credential{}, false, nil
	}
	return credentialFromMap(username, raw), true, nil
}

// Usernames lists the registered usernames in order
func (s *Store) Usernames(sess *registry.Session) ([]string, error) {
	_, users, err := s.load(sess)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Require returns the session identity or domain.ErrUnauthenticated
func Require(sess *registry.Session) (domain.Identity, error) {
	id := sess.Identity()
	if id.Anonymous() {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return id, nil
}

// load re-reads the credentials document so that identities registered by
// other sessions are visible, and returns it with its usernames mapping
func (s *Store) load(sess *registry.Session) (map[string]any, map[string]any, error) {
	sess.Evict(credentialsKey)
	v, err := sess.LoadAppData(credentialsKey, s.file, map[string]any{usersField: map[string]any{}})
	if err != nil {
		return nil, nil, fmt.Errorf("load credentials: %w", err)
	}
	if _, ok := sess.Entry(credentialsKey); !ok {
		return nil, nil, ErrCredentialsUnavailable
	}

	doc, ok := v.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("credentials document is %T: %w", v, domain.ErrShapeMismatch)
	}
	users, ok := doc[usersField].(map[string]any)
	if !ok {
		users = make(map[string]any)
		doc[usersField] = users
	}
	return doc, users, nil
}

func (s *Store) hash(password string) (string, error) {
	if s.scheme != SchemeBcrypt {
		return password, nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

func verify(stored, supplied string) bool {
	if stored == "" {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

func credentialMap(c domain.Credential) map[string]any {
	m := map[string]any{
		"email":      c.Email,
		"password":   c.Password,
		"created_at": c.CreatedAt.Format(time.RFC3339),
	}
	if c.Name != "" {
		m["name"] = c.Name
	}
	if len(c.Metadata) > 0 {
		meta := make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			meta[k] = v
		}
		m["metadata"] = meta
	}
	return m
}

func credentialFromMap(username string, raw any) domain.Credential {
	m, _ := raw.(map[string]any)
	c := domain.Credential{
		Username: username,
		Name:     stringField(m, "name"),
		Email:    stringField(m, "email"),
		Password: stringField(m, "password"),
	}
	if ts, err := time.Parse(time.RFC3339, stringField(m, "created_at")); err == nil {
		c.CreatedAt = ts
	}
	if meta, ok := m["metadata"].(map[string]any); ok {
		c.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			c.Metadata[k] = fmt.Sprint(v)
		}
	}
	return c
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
