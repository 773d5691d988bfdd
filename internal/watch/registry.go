package watch

import (
	"context"
	"sync"
	"time"

	"genstudio-dashboard/internal/model"
)

type key struct {
	sessionID string
	projectID int64
}

// Registry arms at most one poller per (session, project). Handlers feed it
// every snapshot they see; it starts a loop only when the snapshot contains
// a running task and no loop is already active, which is the level-triggered
// re-arm rule.
type Registry struct {
	interval time.Duration

	mu     sync.Mutex
	active map[key]context.CancelFunc
}

func NewRegistry(interval time.Duration) *Registry {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Registry{
		interval: interval,
		active:   make(map[key]context.CancelFunc),
	}
}

// Observe evaluates a freshly fetched snapshot and arms a poller when
// needed. The poller unregisters itself when it winds down, so a later
// snapshot with running tasks re-arms cleanly.
func (r *Registry) Observe(sessionID string, projectID int64, tasks []model.Task, fetch FetchFunc, publish PublishFunc) {
	if !model.AnyRunning(tasks) {
		return
	}

	k := key{sessionID: sessionID, projectID: projectID}
	r.mu.Lock()
	if _, running := r.active[k]; running {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.active[k] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.active, k)
			r.mu.Unlock()
			cancel()
		}()
		NewPoller(r.interval, fetch, publish).Run(ctx)
	}()
}

// StopSession tears down every poller owned by the session.
func (r *Registry) StopSession(sessionID string) {
	r.mu.Lock()
	for k, cancel := range r.active {
		if k.sessionID == sessionID {
			cancel()
		}
	}
	r.mu.Unlock()
}

// Stop tears down every active poller.
func (r *Registry) Stop() {
	r.mu.Lock()
	for _, cancel := range r.active {
		cancel()
	}
	r.mu.Unlock()
}

// Active reports whether a poller is currently armed for the pair.
func (r *Registry) Active(sessionID string, projectID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, running := r.active[key{sessionID: sessionID, projectID: projectID}]
	return running
}
