package media

import (
	"context"
	"sync"
)

// State is the display state of a viewer slot.
type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Viewer manages the media handle for a single display slot. A fetch started
// for path A and superseded by a fetch for path B must never let A's
// completion overwrite B's handle, regardless of completion order. Each Show
// bumps a generation counter and only the completion still holding the
// current generation may commit; Close bumps it too, so a completion racing a
// teardown is discarded without mutating state or leaking a handle.
type Viewer struct {
	source BlobSource
	store  *Store

	mu       sync.Mutex
	gen      uint64
	state    State
	handle   Handle
	filepath string
}

func NewViewer(source BlobSource, store *Store) *Viewer {
	return &Viewer{source: source, store: store}
}

// Show fetches and displays the media at filepath, releasing whatever handle
// the slot held before. Safe to call from concurrent requests for the same
// slot: the last call wins.
func (v *Viewer) Show(ctx context.Context, filepath string) {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return
	}
	v.gen++
	gen := v.gen
	v.releaseLocked()
	v.state = StateLoading
	v.filepath = filepath
	v.mu.Unlock()

	blob, err := v.source.Fetch(ctx, filepath)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		// Superseded or closed while in flight. The result is discarded
		// before a handle is ever acquired, so nothing leaks.
		return
	}
	if err != nil {
		v.state = StateFailed
		return
	}
	v.handle = v.store.Acquire(blob)
	v.state = StateReady
}

// Close releases the slot's handle and invalidates any in-flight fetch.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.releaseLocked()
	v.state = StateClosed
}

// State reports the current display state.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Handle returns the live handle when the slot is ready.
func (v *Viewer) Handle() (Handle, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateReady {
		return Handle{}, false
	}
	return v.handle, true
}

// Filepath reports the most recently requested path.
func (v *Viewer) Filepath() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filepath
}

func (v *Viewer) releaseLocked() {
	if v.handle.ID != "" {
		v.store.Release(v.handle.ID)
		v.handle = Handle{}
	}
}
