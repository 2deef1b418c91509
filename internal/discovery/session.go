package discovery

import (
	"sync"
	"time"
)

// Session is the per-client retrieval state. It remembers whether a
// non-empty primary load has happened and which request is the latest.
type Session struct {
	mu         sync.Mutex
	hasLoaded  bool
	generation uint64
	lastSeen   time.Time
}

// NewSession creates a session with no load history
func NewSession() *Session {
	return &Session{lastSeen: time.Now()}
}

// HasLoaded reports whether a non-empty primary load has been committed
func (s *Session) HasLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasLoaded
}

// begin starts a new request and supersedes every request still in flight
func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.lastSeen = time.Now()
	return s.generation
}

// commit records the outcome of request gen. It returns false when a later
// request has started, in which case nothing is recorded.
func (s *Session) commit(gen uint64, primaryLoaded bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	if primaryLoaded {
		s.hasLoaded = true
	}
	return true
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionRegistry maps client session ids to sessions
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionRegistry creates a registry whose sessions expire after ttl of inactivity
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session for id, creating it on first use.
// An empty id yields a throwaway session that is not registered.
func (r *SessionRegistry) Get(id string) *Session {
	if id == "" {
		return NewSession()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = NewSession()
		r.sessions[id] = s
	}
	return s
}

// Len returns the number of registered sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the ttl and returns how many were dropped
func (r *SessionRegistry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
