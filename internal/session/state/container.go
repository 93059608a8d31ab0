// Package state holds the controller state tuple. The session service is the
// only writer; everything else reads snapshots or watches for changes.
package state

import (
	"sync"

	"propmaster/internal/session/models"
)

// Container is an injectable single-writer holder of models.State.
type Container struct {
	mu       sync.RWMutex
	state    models.State
	watchers []*watcher

	// notifyMu serializes watcher delivery so watchers observe commits in order.
	notifyMu sync.Mutex
}

type watcher struct {
	fn func(models.State)
}

func New() *Container {
	return &Container{}
}

// Snapshot returns a copy of the current state.
func (c *Container) Snapshot() models.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Commit applies mutate to a copy of the state, bumps the version and
// notifies watchers. Only the session service calls Commit.
func (c *Container) Commit(mutate func(*models.State)) models.State {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	next := c.state
	mutate(&next)
	if !next.Ready && c.state.Ready {
		// ready never reverts
		next.Ready = true
	}
	next.Version = c.state.Version + 1
	c.state = next
	watchers := append([]*watcher(nil), c.watchers...)
	c.mu.Unlock()

	for _, w := range watchers {
		w.fn(next)
	}
	return next
}

// Watch registers fn for every committed state. Watchers are called in
// registration order on the writer goroutine and must not block or call
// back into the writer.
func (c *Container) Watch(fn func(models.State)) (unsubscribe func()) {
	w := &watcher{fn: fn}
	c.mu.Lock()
	c.watchers = append(c.watchers, w)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, cur := range c.watchers {
				if cur == w {
					c.watchers = append(c.watchers[:i:i], c.watchers[i+1:]...)
					return
				}
			}
		})
	}
}
