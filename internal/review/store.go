package review

import (
	"sync"
	"time"

	"github.com/emberhq/ember/internal/fault"
)

// SessionStore holds live review sessions in memory, keyed by id.
// Sessions are short-lived orchestration state, not durable data: once a
// session has been terminal for longer than the grace period it is
// evicted and behaves as if it never existed.
//
// Distinct sessions are independent; the store serializes access so they
// may run concurrently. Per-session call ordering is the caller's
// responsibility (Continue on one session must not race itself).
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	grace    time.Duration
}

// NewSessionStore creates a SessionStore with the given eviction grace.
func NewSessionStore(grace time.Duration) *SessionStore {
	if grace <= 0 {
		grace = time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		grace:    grace,
	}
}

// Put stores a snapshot of the session.
func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s.clone()
	st.sweepLocked(timeNow())
}

// Get returns a copy of the session, or NotFound.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, fault.New(fault.NotFound, "review session %q not found", id)
	}
	return s.clone(), nil
}

// sweepLocked evicts sessions that have been terminal (including failed
// and abandoned) past the grace period. Caller holds the write lock.
func (st *SessionStore) sweepLocked(now time.Time) {
	for id, s := range st.sessions {
		if s.Status.Terminal() || s.Status == StatusFailed {
			if now.Sub(s.UpdatedAt) > st.grace {
				delete(st.sessions, id)
			}
		}
	}
}
