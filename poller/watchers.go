// File: poller/watchers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package poller

import "github.com/momentics/hioload-poller/api"

// watcher is the per-descriptor arm state.
type watcher struct {
	fd         int
	requested  api.EventType // includes the implicit error bit
	epoch      uint64
	registered bool // the reactor holds a live registration
	fired      bool // an event of this epoch was already delivered
}

// watcherTable maps descriptors to watchers. Only the owning goroutine
// touches it, reactor callbacks never do.
type watcherTable struct {
	byFd map[int]*watcher
}

func newWatcherTable() watcherTable {
	return watcherTable{byFd: make(map[int]*watcher)}
}

// arm records a new arm for fd and reports whether a watcher existed.
func (t *watcherTable) arm(fd int, requested api.EventType, epoch uint64) (*watcher, bool) {
	w, ok := t.byFd[fd]
	if !ok {
		w = &watcher{fd: fd}
		t.byFd[fd] = w
	}
	w.requested = requested
	w.epoch = epoch
	w.fired = false
	return w, ok
}

func (t *watcherTable) lookup(fd int) (*watcher, bool) {
	w, ok := t.byFd[fd]
	return w, ok
}

func (t *watcherTable) erase(fd int) {
	delete(t.byFd, fd)
}

// drain empties the table and returns the watchers it held.
func (t *watcherTable) drain() []*watcher {
	out := make([]*watcher, 0, len(t.byFd))
	for _, w := range t.byFd {
		out = append(out, w)
	}
	t.byFd = make(map[int]*watcher)
	return out
}

func (t *watcherTable) len() int {
	return len(t.byFd)
}
