// Package session keeps one booking manager per signed-in user so that each
// user's collections and token stay separate inside the shared server.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/lab-booking/internal/auth"
	"github.com/iliyamo/lab-booking/internal/booking"
	"github.com/iliyamo/lab-booking/internal/clock"
)

// RemoteFactory builds the remote client a user's manager talks through,
// authenticated by that user's session.
type RemoteFactory func(p auth.Provider) booking.Remote

type entry struct {
	session  *auth.Session
	manager  *booking.Manager
	lastUsed time.Time
}

// Registry owns the per-user managers.  A 401 from the remote service
// invalidates the user's session and drops the entry; the next request
// starts from empty collections.
type Registry struct {
	newRemote RemoteFactory
	clock     clock.Clock
	idleTTL   time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for idle tracking and passed to managers.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithIdleTTL drops sessions unused for longer than d.  Zero keeps them
// until invalidated.
func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) { r.idleTTL = d }
}

func NewRegistry(newRemote RemoteFactory, opts ...Option) *Registry {
	r := &Registry{
		newRemote: newRemote,
		clock:     clock.NewSystem(time.UTC),
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// For returns the manager of userID, creating it on first use.  role and
// token replace the session's credentials so a refreshed token takes
// effect immediately.
func (r *Registry) For(userID, role, token string) *booking.Manager {
	userID = strings.TrimSpace(userID)
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)

	if e, ok := r.entries[userID]; ok {
		if e.session.Token() != strings.TrimSpace(token) {
			e.session.SetToken(token)
		}
		if e.session.Role() != strings.TrimSpace(role) {
			e.session.SetRole(role)
		}
		e.lastUsed = now
		return e.manager
	}

	e := &entry{lastUsed: now}
	e.session = auth.NewSession(userID, role, token, func() { r.drop(userID, e) })
	e.manager = booking.NewManager(r.newRemote(e.session), booking.WithClock(r.clock), booking.WithAuth(e.session))
	r.entries[userID] = e
	return e.manager
}

// Drop forgets the manager of userID.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	delete(r.entries, strings.TrimSpace(userID))
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// drop removes e only if it is still the registered entry, so a late
// invalidation from an old session cannot evict its replacement.
func (r *Registry) drop(userID string, e *entry) {
	r.mu.Lock()
	if cur, ok := r.entries[userID]; ok && cur == e {
		delete(r.entries, userID)
	}
	r.mu.Unlock()
}

func (r *Registry) pruneLocked(now time.Time) {
	if r.idleTTL <= 0 {
		return
	}
	for id, e := range r.entries {
		if now.Sub(e.lastUsed) > r.idleTTL {
			delete(r.entries, id)
		}
	}
}
