// Package feed turns store change notifications into live snapshot
// subscriptions.
package feed

import (
	"context"
	"sync"

	"budgetdash/internal/core"
	"budgetdash/internal/store"
)

// Hub fans change signals out to watchers of a collection. Each watcher has
// a one-slot signal channel, so a burst of changes collapses into a single
// pending signal.
type Hub struct {
	mu       sync.Mutex
	watchers map[core.Collection]map[*watcher]struct{}
}

type watcher struct {
	ch chan struct{}
}

var _ store.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{watchers: make(map[core.Collection]map[*watcher]struct{})}
}

// Watch registers interest in c. The returned stop func must be called to
// release the watcher.
func (h *Hub) Watch(c core.Collection) (<-chan struct{}, func()) {
	w := &watcher{ch: make(chan struct{}, 1)}
	h.mu.Lock()
	if h.watchers[c] == nil {
		h.watchers[c] = make(map[*watcher]struct{})
	}
	h.watchers[c][w] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return w.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers[c], w)
			h.mu.Unlock()
		})
	}
}

// Notify signals every watcher of ch.Collection without blocking.
func (h *Hub) Notify(_ context.Context, ch store.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[ch.Collection] {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

// Watchers returns the number of active watchers of c.
func (h *Hub) Watchers(c core.Collection) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[c])
}
