package ingestion

import (
	"context"
	"sync"

	"github.com/poiesic/scriptorium/core"
)

// run is one in-flight processing run of a document.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// registry tracks in-flight runs so deletes can cancel and await them.
// At most one run per document is active in a process.
type registry struct {
	mu   sync.Mutex
	runs map[core.ID]*run
}

func newRegistry() *registry {
	return &registry{runs: make(map[core.ID]*run)}
}

// start registers a run for id. It returns false if one is already active.
// The returned finish func must be called when the run ends.
func (r *registry) start(parent context.Context, id core.ID) (context.Context, func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; ok {
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	entry := &run{cancel: cancel, done: make(chan struct{})}
	r.runs[id] = entry
	finish := func() {
		r.mu.Lock()
		if r.runs[id] == entry {
			delete(r.runs, id)
		}
		r.mu.Unlock()
		cancel()
		close(entry.done)
	}
	return ctx, finish, true
}

// done returns the completion channel of the active run, or nil.
func (r *registry) done(id core.ID) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.runs[id]; ok {
		return entry.done
	}
	return nil
}

// cancel cancels the active run of id and returns its completion channel,
// or nil when nothing is running.
func (r *registry) cancel(id core.ID) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.runs[id]
	if !ok {
		return nil
	}
	entry.cancel()
	return entry.done
}

// active reports whether id has an in-flight run.
func (r *registry) active(id core.ID) bool {
	return r.done(id) != nil
}

// cancelAll cancels every active run.
func (r *registry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.runs {
		entry.cancel()
	}
}
