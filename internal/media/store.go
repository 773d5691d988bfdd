package media

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is a locally resolvable reference to fetched bytes, the server-side
// analogue of a browser object URL. Exactly one handle exists per successful
// fetch for a given display slot; whoever acquired it must release it once
// the media is no longer shown, or memory grows with every view rendered.
type Handle struct {
	ID   string
	Blob Blob
}

// Store holds live handles keyed by ID.
type Store struct {
	mu      sync.Mutex
	handles map[string]Blob
}

func NewStore() *Store {
	return &Store{handles: make(map[string]Blob)}
}

// Acquire registers the blob under a fresh handle.
func (s *Store) Acquire(blob Blob) Handle {
	h := Handle{ID: uuid.NewString(), Blob: blob}
	s.mu.Lock()
	s.handles[h.ID] = blob
	s.mu.Unlock()
	return h
}

// Get resolves a handle ID to its blob.
func (s *Store) Get(id string) (Blob, bool) {
	s.mu.Lock()
	blob, ok := s.handles[id]
	s.mu.Unlock()
	return blob, ok
}

// Release revokes a handle. Releasing an unknown or already-released handle
// is a no-op.
func (s *Store) Release(id string) {
	s.mu.Lock()
	delete(s.handles, id)
	s.mu.Unlock()
}

// Len reports the number of live handles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
