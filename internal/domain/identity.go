package domain

import "time"

// Identity is the transient identity of one session
type Identity struct {
	Username      string `json:"username"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous reports whether the identity grants no per-user access
func (i Identity) Anonymous() bool {
	return !i.Authenticated || i.Username == ""
}

// Namespace returns the user namespace of an authenticated identity
func (i Identity) Namespace() (Namespace, bool) {
	if i.Anonymous() {
		return "", false
	}
	return UserNamespace(i.Username), true
}

// SessionState is the state of the session identity machine
type SessionState string

const (
	StateAnonymous      SessionState = "anonymous"
	StateAuthenticating SessionState = "authenticating"
	StateAuthenticated  SessionState = "authenticated"
)

// AuthStatus is the tri-state outcome of the last authentication attempt
type AuthStatus string

const (
	AuthNoAttempt        AuthStatus = "no_attempt"
	AuthSuccess          AuthStatus = "success"
	AuthWrongCredentials AuthStatus = "wrong_credentials"
)

// Credential is the persisted identity record of one user
type Credential struct {
	Username  string            `json:"username" yaml:"-"`
	Name      string            `json:"name,omitempty" yaml:"name,omitempty"`
	Email     string            `json:"email" yaml:"email"`
	Password  string            `json:"-" yaml:"password"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
