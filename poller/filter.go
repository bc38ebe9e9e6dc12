// File: poller/filter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package poller

import (
	"code.cloudfoundry.org/lager/v3"

	"github.com/momentics/hioload-poller/api"
)

// eventsFilter pulls from next until it yields an interrupt or an event of
// the current arm of a live watcher. Everything else is stale and dropped.
func (p *Poller) eventsFilter(next func() (api.Event, bool)) (api.Event, api.Status) {
	for {
		ev, ok := next()
		if !ok {
			return api.Event{Fd: api.InvalidFd}, api.StatusNoEvents
		}
		if ev.IsInterrupt() {
			return ev, api.StatusInterrupt
		}

		w, found := p.watchers.lookup(ev.Fd)
		if !found || w.epoch != ev.Epoch || w.fired {
			p.count(p.keys.stale)
			p.logger.Debug("dropped-stale", lager.Data{"fd": ev.Fd, "epoch": ev.Epoch, "events": ev.Type.String()})
			continue
		}

		w.fired = true
		p.count(p.keys.delivered)
		return ev, api.StatusSuccess
	}
}
