// File: poller/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poller turns reactor readiness callbacks into a queue of epoch-stamped
// events that its owning goroutine polls or waits on with a deadline.

package poller

import (
	"context"
	"fmt"
	"sync/atomic"

	"code.cloudfoundry.org/lager/v3"
	"github.com/google/uuid"

	"github.com/momentics/hioload-poller/api"
	"github.com/momentics/hioload-poller/internal/concurrency"
)

// Poller is an I/O event monitor.
//
// It is not generally safe for concurrent use: Add, Remove, Reset,
// NextEvent and NextEventNoblock belong to a single owning goroutine, and
// the watched set must not change while a NextEvent wait is active.
// Interrupt may be called from any goroutine. Hangup is reported as
// readiness.
type Poller struct {
	id       uuid.UUID
	cfg      Config
	logger   lager.Logger
	reactor  api.Reactor
	producer concurrency.Producer[api.Event]
	consumer concurrency.Consumer[api.Event]
	queue    *concurrency.MpscQueue[api.Event]
	watchers watcherTable
	epoch    uint64 // last epoch handed out, owner only
	waiting  atomic.Bool
	nwatch   atomic.Int64 // mirror of watchers.len() for probes
	keys     metricKeys
}

type metricKeys struct {
	delivered, stale, interrupts, regErrors, watchers, probe string
}

// New creates a Poller registering descriptors with r.
func New(r api.Reactor, opts ...Option) *Poller {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	id := uuid.New()
	q := concurrency.NewMpscQueue[api.Event]()
	consumer, _ := q.Consumer() // fresh queue, cannot be taken yet

	prefix := fmt.Sprintf("poller.%s.", id)
	p := &Poller{
		id:       id,
		cfg:      *cfg,
		logger:   cfg.Logger.Session("poller", lager.Data{"poller-id": id.String()}),
		reactor:  r,
		producer: q.Producer(),
		consumer: consumer,
		queue:    q,
		watchers: newWatcherTable(),
		keys: metricKeys{
			delivered:  prefix + "delivered",
			stale:      prefix + "stale",
			interrupts: prefix + "interrupts",
			regErrors:  prefix + "registration_errors",
			watchers:   prefix + "watchers",
			probe:      prefix + "state",
		},
	}

	if cfg.Probes != nil {
		cfg.Probes.RegisterProbe(p.keys.probe, p.probe)
	}
	p.publishWatchers()
	return p
}

// ID identifies the poller in logs and metric keys.
func (p *Poller) ID() uuid.UUID {
	return p.id
}

// Add updates the set of events monitored for fd. At most one event is
// reported per Add: the caller re-arms after consuming it. EventError is
// implicit. Any event queued under an earlier Add for fd is invalidated.
func (p *Poller) Add(fd int, events api.EventType) error {
	if p.waiting.Load() {
		p.logger.Error("add-during-wait", api.ErrConcurrentWait, lager.Data{"fd": fd})
		return api.ErrConcurrentWait
	}
	if fd < 0 {
		return api.WrapError(api.ErrCodeInvalidArgument, "poller: negative descriptor", api.ErrInvalidArgument).
			WithContext("fd", fd)
	}
	if !events.Valid() || !events.Any(api.EventRead|api.EventWrite) {
		return api.WrapError(api.ErrCodeInvalidArgument, "poller: events must include read or write", api.ErrInvalidArgument).
			WithContext("fd", fd).
			WithContext("events", events.String())
	}

	mask := events.WithImplicit()
	p.epoch++
	epoch := p.epoch
	w, existed := p.watchers.arm(fd, mask, epoch)

	if err := p.reactor.Register(fd, mask, p.readinessCallback(mask, epoch)); err != nil {
		p.count(p.keys.regErrors)
		p.logger.Error("register-failed", err, lager.Data{"fd": fd, "events": mask.String(), "epoch": epoch})
		if existed && w.registered {
			p.unregister(fd)
		}
		p.watchers.erase(fd)
		p.publishWatchers()
		return api.WrapError(api.ErrCodeRegistration, "poller: reactor registration failed", err).
			WithContext("fd", fd)
	}

	w.registered = true
	p.publishWatchers()
	p.logger.Debug("armed", lager.Data{"fd": fd, "events": mask.String(), "epoch": epoch})
	return nil
}

// readinessCallback builds the reactor callback for one arm. It captures
// plain values only; staleness is decided by the consumer.
func (p *Poller) readinessCallback(mask api.EventType, epoch uint64) api.ReadinessCallback {
	producer := p.producer
	return func(fd int, events api.EventType) {
		ready := events & mask
		if ready == api.EventNone {
			return
		}
		producer.Push(api.Event{Fd: fd, Type: ready, Epoch: epoch})
	}
}

// Remove disables monitoring of fd. It must be called before fd is closed.
// Events already queued for fd are never delivered.
func (p *Poller) Remove(fd int) {
	if p.waiting.Load() {
		p.logger.Error("remove-during-wait", api.ErrConcurrentWait, lager.Data{"fd": fd})
	}
	w, ok := p.watchers.lookup(fd)
	if !ok {
		return
	}
	if w.registered {
		p.unregister(fd)
	}
	p.watchers.erase(fd)
	p.publishWatchers()
	p.logger.Debug("removed", lager.Data{"fd": fd, "epoch": w.epoch})
}

func (p *Poller) unregister(fd int) {
	if err := p.reactor.Unregister(fd); err != nil {
		p.logger.Debug("unregister-failed", lager.Data{"fd": fd, "error": err.Error()})
	}
}

// NextEvent waits for the next event until deadline passes or ctx is
// cancelled. Expiry and cancellation both yield StatusNoEvents. An event
// already queued is returned even if the deadline has passed.
func (p *Poller) NextEvent(ctx context.Context, deadline api.Deadline) (api.Event, api.Status) {
	if !p.waiting.CompareAndSwap(false, true) {
		p.logger.Error("concurrent-wait", api.ErrConcurrentWait)
		return api.Event{Fd: api.InvalidFd}, api.StatusNoEvents
	}
	defer p.waiting.Store(false)

	return p.eventsFilter(func() (api.Event, bool) {
		ev, res := p.consumer.Pop(ctx, deadline)
		return ev, res == concurrency.PopOK
	})
}

// NextEventNoblock returns the next event if one is immediately available.
func (p *Poller) NextEventNoblock() (api.Event, api.Status) {
	return p.eventsFilter(p.consumer.TryPop)
}

// Interrupt emits an event for InvalidFd with an empty type set. Each call
// yields exactly one StatusInterrupt. Safe for use from any goroutine.
func (p *Poller) Interrupt() {
	p.producer.Push(api.InterruptEvent())
	p.count(p.keys.interrupts)
}

// Reset unregisters every descriptor and drops all queued events.
func (p *Poller) Reset() {
	if p.waiting.Load() {
		p.logger.Error("reset-during-wait", api.ErrConcurrentWait)
	}
	removed := p.watchers.drain()
	for _, w := range removed {
		if w.registered {
			p.unregister(w.fd)
		}
	}
	dropped := p.consumer.Drain()
	p.publishWatchers()
	p.logger.Debug("reset", lager.Data{"watchers": len(removed), "dropped": dropped})
}

// Close resets the poller, drops its debug probe and closes the reactor
// when the poller owns it.
func (p *Poller) Close() error {
	p.Reset()
	if p.cfg.Probes != nil {
		p.cfg.Probes.UnregisterProbe(p.keys.probe)
	}
	if p.cfg.OwnedReactor {
		return p.reactor.Close()
	}
	return nil
}

// Watching returns the requested mask and current epoch for fd.
func (p *Poller) Watching(fd int) (api.EventType, uint64, bool) {
	w, ok := p.watchers.lookup(fd)
	if !ok {
		return api.EventNone, 0, false
	}
	return w.requested, w.epoch, true
}

// Len returns the number of watched descriptors.
func (p *Poller) Len() int {
	return p.watchers.len()
}

// Pending returns the number of queued, not yet filtered events.
func (p *Poller) Pending() int {
	return p.queue.Len()
}

func (p *Poller) count(key string) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.Add(key, 1)
	}
}

func (p *Poller) publishWatchers() {
	n := int64(p.watchers.len())
	p.nwatch.Store(n)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.Set(p.keys.watchers, n)
	}
}

func (p *Poller) probe() any {
	return map[string]any{
		"watchers": p.nwatch.Load(),
		"queued":   p.queue.Len(),
		"waiting":  p.waiting.Load(),
	}
}
