// Package auth holds the client's credentials and the hand-off to the
// login boundary when the server rejects them.
package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// TokenStore keeps the API token. Storage mechanics are up to the host.
type TokenStore interface {
	Token() string
	SetToken(string)
	Clear()
}

// MemoryStore is a process-local TokenStore.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func (m *MemoryStore) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *MemoryStore) SetToken(t string) {
	m.mu.Lock()
	m.token = t
	m.mu.Unlock()
}

func (m *MemoryStore) Clear() { m.SetToken("") }

// LoginBoundary is where the user is sent when the session ends.
type LoginBoundary interface {
	RedirectToLogin(reason string)
}

type LoginBoundaryFunc func(reason string)

func (f LoginBoundaryFunc) RedirectToLogin(reason string) { f(reason) }

// Session couples the token store with the login boundary. A burst of
// rejected requests ends the session once.
type Session struct {
	store    TokenStore
	boundary LoginBoundary

	mu      sync.Mutex
	expired bool
	role    Role
}

func NewSession(store TokenStore, boundary LoginBoundary) *Session {
	if store == nil {
		store = &MemoryStore{}
	}
	return &Session{store: store, boundary: boundary}
}

func (s *Session) Token() string { return s.store.Token() }

// Begin stores a fresh token and re-arms expiry handling. The role is
// unknown until SetRole.
func (s *Session) Begin(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetToken(token)
	s.expired = false
	s.role = ""
}

func (s *Session) SetRole(r Role) {
	s.mu.Lock()
	s.role = r
	s.mu.Unlock()
}

// Role is empty when the token was configured rather than obtained by login.
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Expire clears the credentials and redirects to login. It reports whether
// this call was the one that ended the session.
func (s *Session) Expire(reason string) bool {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return false
	}
	s.expired = true
	s.role = ""
	s.store.Clear()
	s.mu.Unlock()

	logrus.WithField("reason", reason).Warn("Session ended, redirecting to login")
	if s.boundary != nil {
		s.boundary.RedirectToLogin(reason)
	}
	return true
}

// Expired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens are never considered expired here; the server decides.
func Expired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
