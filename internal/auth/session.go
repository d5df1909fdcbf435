// Package auth supplies the current user's identity and bearer token to the
// booking manager and the remote client.  Sign-in itself happens elsewhere;
// this package only holds the resulting session.
package auth

import (
	"strings"
	"sync"
)

// Provider is the auth collaborator consumed by the booking manager.  The
// values are expected to be available synchronously when an operation
// starts.  Invalidate is called when the remote service answers 401.
type Provider interface {
	UserID() string
	Token() string
	Invalidate()
}

// Session is an in-memory Provider.  The token may be replaced while
// operations are in flight; each request reads it once.
type Session struct {
	mu           sync.RWMutex
	userID       string
	role         string
	token        string
	invalid      bool
	onInvalidate func()
}

// NewSession returns a session for the given user.  onInvalidate, when
// non-nil, runs once the first time the session is invalidated.
func NewSession(userID, role, token string, onInvalidate func()) *Session {
	return &Session{
		userID:       userID,
		role:         strings.TrimSpace(role),
		token:        strings.TrimSpace(token),
		onInvalidate: onInvalidate,
	}
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Role returns the role claim the session was opened with.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Token returns the bearer token, or "" once the session is invalid.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.invalid {
		return ""
	}
	return s.token
}

// SetRole replaces the role claim, as carried by a refreshed token.
func (s *Session) SetRole(role string) {
	s.mu.Lock()
	s.role = strings.TrimSpace(role)
	s.mu.Unlock()
}

// SetToken replaces the bearer token and revives an invalidated session.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.invalid = false
	s.mu.Unlock()
}

// Valid reports whether the session still holds a usable token.
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.invalid && s.token != ""
}

// Invalidate clears the token and fires the invalidation callback once.
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.invalid {
		s.mu.Unlock()
		return
	}
	s.invalid = true
	s.token = ""
	cb := s.onInvalidate
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}
