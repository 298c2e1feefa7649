package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"glucotrack/internal/registry"
)

// Sessions binds requests to registry sessions through a cookie
type Sessions struct {
	manager *registry.Manager
	cookie  string
	maxAge  time.Duration
	secure  bool
}

// NewSessions creates a session binder using the named cookie
func NewSessions(manager *registry.Manager, cookie string, maxAge time.Duration) *Sessions {
	return &Sessions{manager: manager, cookie: cookie, maxAge: maxAge}
}

// SetSecure marks issued cookies as HTTPS only
func (s *Sessions) SetSecure(secure bool) {
	s.secure = secure
}

// Resolve returns the session of the request, issuing a new id when the
// cookie is missing or malformed
func (s *Sessions) Resolve(w http.ResponseWriter, r *http.Request) *registry.Session {
	if c, err := r.Cookie(s.cookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return s.manager.Session(id.String())
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s.manager.Session(id)
}

// Drop forgets the session of the request and expires its cookie
func (s *Sessions) Drop(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.cookie); err == nil {
		s.manager.Drop(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
	})
}
