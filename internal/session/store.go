package session

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound indicates the session ID does not map to a live session.
var ErrNotFound = errors.New("session: not found")

// Store maps session IDs to live sessions. Most browsers never log out, the
// cookie just expires, so sessions that sit idle past a deadline are swept
// out by SweepIdle rather than lingering until process restart.
type Store struct {
	backendURL string
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
}

func NewStore(backendURL string) *Store {
	return NewStoreWithNow(backendURL, time.Now)
}

func NewStoreWithNow(backendURL string, now func() time.Time) *Store {
	return &Store{
		backendURL: backendURL,
		now:        now,
		sessions:   make(map[string]*Session),
		lastSeen:   make(map[string]time.Time),
	}
}

// Create mints a session with its own backend client.
func (st *Store) Create() (*Session, error) {
	s, err := New(st.backendURL)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.lastSeen[s.ID] = st.now()
	st.mu.Unlock()
	return s, nil
}

// Get resolves a session ID and marks the session as seen.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		st.lastSeen[id] = st.now()
	}
	st.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete drops the session. Idempotent.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	delete(st.lastSeen, id)
	st.mu.Unlock()
}

// SweepIdle removes sessions that have not been seen for maxIdle and returns
// them so the caller can tear down their pollers and media state. A session
// resolved through Get counts as seen.
func (st *Store) SweepIdle(maxIdle time.Duration) []*Session {
	deadline := st.now().Add(-maxIdle)

	st.mu.Lock()
	defer st.mu.Unlock()

	var evicted []*Session
	for id, seen := range st.lastSeen {
		if seen.Before(deadline) {
			evicted = append(evicted, st.sessions[id])
			delete(st.sessions, id)
			delete(st.lastSeen, id)
		}
	}
	return evicted
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
