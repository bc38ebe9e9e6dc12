//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"code.cloudfoundry.org/lager/v3"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-poller/api"
)

// linuxReactor is an epoll-based event reactor. Every registration is
// EPOLLONESHOT and carries a token in the event payload so a notification
// armed by a superseded registration is never handed to its successor.
type linuxReactor struct {
	logger    lager.Logger
	epfd      int
	wakefd    int
	maxEvents int
	regs      sync.Map // map[int]*registration
	seq       atomic.Int32
	closed    atomic.Bool
	done      chan struct{}
}

// New constructs a new platform-specific reactor for Linux and starts its
// delivery goroutine.
func New(opts ...Option) (api.Reactor, error) {
	cfg := newConfig(opts)

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	wake := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, wake); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}

	r := &linuxReactor{
		logger:    cfg.logger.Session("epoll"),
		epfd:      epfd,
		wakefd:    wakefd,
		maxEvents: cfg.maxEvents,
		done:      make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Register adds or re-arms fd in the epoll interest set.
func (r *linuxReactor) Register(fd int, mask api.EventType, cb api.ReadinessCallback) error {
	if r.closed.Load() {
		return api.ErrClosed
	}
	if err := validate(fd, mask, cb); err != nil {
		return err
	}

	reg := &registration{mask: mask, cb: cb, token: r.seq.Add(1)}
	ev := &unix.EpollEvent{
		Events: toEpoll(mask),
		Fd:     int32(fd),
	}
	ev.Pad = reg.token

	prev, loaded := r.regs.Swap(fd, reg)
	op := unix.EPOLL_CTL_ADD
	if loaded {
		op = unix.EPOLL_CTL_MOD
	}

	err := unix.EpollCtl(r.epfd, op, fd, ev)
	switch {
	case errors.Is(err, unix.EEXIST) && op == unix.EPOLL_CTL_ADD:
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, ev)
	case errors.Is(err, unix.ENOENT) && op == unix.EPOLL_CTL_MOD:
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, ev)
	}
	if err != nil {
		if loaded {
			r.regs.Store(fd, prev)
		} else {
			r.regs.Delete(fd)
		}
		return fmt.Errorf("epoll ctl fd %d: %w", fd, err)
	}
	return nil
}

// Unregister removes fd from the interest set.
func (r *linuxReactor) Unregister(fd int) error {
	if _, ok := r.regs.LoadAndDelete(fd); !ok {
		return nil
	}
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == nil || errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
		return nil
	}
	return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
}

// Close wakes the delivery goroutine, waits for it and closes the epoll instance.
func (r *linuxReactor) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	if _, err := unix.Write(r.wakefd, buf); err != nil {
		r.logger.Error("wakeup-failed", err)
	}
	<-r.done

	err := unix.Close(r.epfd)
	_ = unix.Close(r.wakefd)
	return err
}

func (r *linuxReactor) run() {
	defer close(r.done)

	events := make([]unix.EpollEvent, r.maxEvents)
	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			r.logger.Error("epoll-wait-failed", err)
			return
		}
		for i := 0; i < n; i++ {
			ev := &events[i]
			fd := int(ev.Fd)
			if fd == r.wakefd {
				if r.closed.Load() {
					return
				}
				r.drainWakeup()
				continue
			}
			r.dispatch(fd, ev.Events, ev.Pad)
		}
	}
}

func (r *linuxReactor) dispatch(fd int, raw uint32, token int32) {
	v, ok := r.regs.Load(fd)
	if !ok {
		return
	}
	reg := v.(*registration)
	if reg.token != token {
		// Fired for a registration that has since been replaced; the
		// replacement re-armed the descriptor and reports on its own.
		return
	}
	events := fromEpoll(raw, reg.mask)
	if events == api.EventNone {
		return
	}
	deliver(r.logger, fd, events, reg.cb)
}

func (r *linuxReactor) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// toEpoll converts a requested mask to epoll interest flags.
func toEpoll(mask api.EventType) uint32 {
	events := uint32(unix.EPOLLONESHOT)
	if mask.Any(api.EventRead) {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if mask.Any(api.EventWrite) {
		events |= unix.EPOLLOUT
	}
	return events
}

// fromEpoll converts epoll flags to a readiness set. Hangup and error are
// reported as readiness for everything requested.
func fromEpoll(raw uint32, requested api.EventType) api.EventType {
	var events api.EventType
	if raw&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		events |= api.EventRead
	}
	if raw&unix.EPOLLOUT != 0 {
		events |= api.EventWrite
	}
	if raw&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		events |= api.EventError | requested&(api.EventRead|api.EventWrite)
	}
	return events
}
