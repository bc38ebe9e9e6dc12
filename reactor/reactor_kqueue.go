//go:build darwin || freebsd
// +build darwin freebsd

// File: reactor/reactor_kqueue.go
// Author: momentics <momentics@gmail.com>
//
// kqueue(2)-based reactor for Darwin and FreeBSD.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"code.cloudfoundry.org/lager/v3"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-poller/api"
)

// kqueueReactor arms one EV_ONESHOT filter per requested direction. A pipe
// registered for reading wakes the delivery goroutine on Close.
type kqueueReactor struct {
	logger    lager.Logger
	kq        int
	wake      [2]int
	maxEvents int
	mu        sync.Mutex
	regs      map[int]*registration
	closed    atomic.Bool
	done      chan struct{}
}

var kqueueFilters = []struct {
	bit    api.EventType
	filter int
}{
	{api.EventRead, unix.EVFILT_READ},
	{api.EventWrite, unix.EVFILT_WRITE},
}

// New constructs a new platform-specific reactor backed by kqueue.
func New(opts ...Option) (api.Reactor, error) {
	cfg := newConfig(opts)

	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	unix.CloseOnExec(kq)

	var wake [2]int
	if err := unix.Pipe(wake[:]); err != nil {
		_ = unix.Close(kq)
		return nil, fmt.Errorf("wakeup pipe: %w", err)
	}
	for _, fd := range wake {
		unix.CloseOnExec(fd)
		_ = unix.SetNonblock(fd, true)
	}

	var change unix.Kevent_t
	unix.SetKevent(&change, wake[0], unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{change}, nil, nil); err != nil {
		_ = unix.Close(wake[0])
		_ = unix.Close(wake[1])
		_ = unix.Close(kq)
		return nil, fmt.Errorf("kevent add wakeup: %w", err)
	}

	r := &kqueueReactor{
		logger:    cfg.logger.Session("kqueue"),
		kq:        kq,
		wake:      wake,
		maxEvents: cfg.maxEvents,
		regs:      make(map[int]*registration),
		done:      make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Register arms one-shot filters for every direction in mask and drops
// filters the previous registration requested but mask no longer does.
func (r *kqueueReactor) Register(fd int, mask api.EventType, cb api.ReadinessCallback) error {
	if r.closed.Load() {
		return api.ErrClosed
	}
	if err := validate(fd, mask, cb); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.regs[fd]
	var adds []unix.Kevent_t
	for _, f := range kqueueFilters {
		var ch unix.Kevent_t
		switch {
		case mask.Any(f.bit):
			unix.SetKevent(&ch, fd, f.filter, unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
			adds = append(adds, ch)
		case prev != nil && prev.mask.Any(f.bit):
			// A fired one-shot filter is already gone; ENOENT is expected.
			unix.SetKevent(&ch, fd, f.filter, unix.EV_DELETE)
			_, _ = unix.Kevent(r.kq, []unix.Kevent_t{ch}, nil, nil)
		}
	}

	if _, err := unix.Kevent(r.kq, adds, nil, nil); err != nil {
		return fmt.Errorf("kevent add fd %d: %w", fd, err)
	}
	r.regs[fd] = &registration{mask: mask, cb: cb}
	return nil
}

// Unregister deletes every filter of fd.
func (r *kqueueReactor) Unregister(fd int) error {
	r.mu.Lock()
	reg, ok := r.regs[fd]
	delete(r.regs, fd)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	var firstErr error
	for _, f := range kqueueFilters {
		if !reg.mask.Any(f.bit) {
			continue
		}
		var ch unix.Kevent_t
		unix.SetKevent(&ch, fd, f.filter, unix.EV_DELETE)
		_, err := unix.Kevent(r.kq, []unix.Kevent_t{ch}, nil, nil)
		if err == nil || errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("kevent delete fd %d: %w", fd, err)
		}
	}
	return firstErr
}

// Close wakes the delivery goroutine, waits for it and closes the kqueue.
func (r *kqueueReactor) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if _, err := unix.Write(r.wake[1], []byte{1}); err != nil {
		r.logger.Error("wakeup-failed", err)
	}
	<-r.done

	err := unix.Close(r.kq)
	_ = unix.Close(r.wake[0])
	_ = unix.Close(r.wake[1])
	return err
}

func (r *kqueueReactor) run() {
	defer close(r.done)

	events := make([]unix.Kevent_t, r.maxEvents)
	for {
		n, err := unix.Kevent(r.kq, nil, events, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			r.logger.Error("kevent-wait-failed", err)
			return
		}
		for i := 0; i < n; i++ {
			ev := &events[i]
			fd := int(ev.Ident)
			if fd == r.wake[0] {
				if r.closed.Load() {
					return
				}
				continue
			}
			r.dispatch(fd, ev)
		}
	}
}

func (r *kqueueReactor) dispatch(fd int, ev *unix.Kevent_t) {
	r.mu.Lock()
	reg, ok := r.regs[fd]
	r.mu.Unlock()
	if !ok {
		return
	}

	var events api.EventType
	switch {
	case ev.Filter == unix.EVFILT_READ:
		events = api.EventRead
	case ev.Filter == unix.EVFILT_WRITE:
		events = api.EventWrite
	}
	if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
		events |= api.EventError
	}
	events &= reg.mask
	if events == api.EventNone {
		return
	}
	deliver(r.logger, fd, events, reg.cb)
}
