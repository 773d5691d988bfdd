// Package watch keeps displayed task lists eventually consistent with the
// backend's generation progress. There is no push channel from the backend,
// so progress is observed by level-triggered polling: a loop runs while the
// latest snapshot contains a running task and winds itself down once none
// remain.
package watch

import (
	"context"
	"log/slog"
	"time"

	"genstudio-dashboard/internal/model"
)

// DefaultInterval matches the dashboard's refresh cadence.
const DefaultInterval = 3 * time.Second

// FetchFunc retrieves the full task list for a project.
type FetchFunc func(ctx context.Context) ([]model.Task, error)

// PublishFunc receives each fetched snapshot. Every publish is a full
// replace, never a merge, so out-of-order completions cannot be observed
// incorrectly.
type PublishFunc func([]model.Task)

// Poller re-fetches a task list at a fixed interval while any task is
// running.
type Poller struct {
	interval time.Duration
	fetch    FetchFunc
	publish  PublishFunc
	logger   *slog.Logger
}

func NewPoller(interval time.Duration, fetch FetchFunc, publish PublishFunc) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		interval: interval,
		fetch:    fetch,
		publish:  publish,
		logger:   slog.Default(),
	}
}

// Run polls once per tick until a fetched snapshot has zero running tasks or
// the context is done. The running check is re-evaluated after every fetch
// rather than counted down, so the loop neither stops early nor outlives the
// work. Fetch errors are transient: the tick is skipped, nothing is
// published, and the loop stays armed.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tasks, err := p.fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warn("task poll failed", "error", err)
				continue
			}
			p.publish(tasks)
			if !model.AnyRunning(tasks) {
				return
			}
		}
	}
}
