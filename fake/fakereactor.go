// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"

	"github.com/momentics/hioload-poller/api"
)

// Reactor is an in-memory api.Reactor driven by hand. Fire plays the role
// of the OS reporting readiness; it honours one-shot arming like the real
// reactors. FireLate replays the last callback seen for a descriptor even
// after it was unregistered, to simulate a notification racing removal.
type Reactor struct {
	mu       sync.Mutex
	regs     map[int]*fakeReg
	last     map[int]api.ReadinessCallback
	failures map[int]error
	calls    []Call
	closed   bool
}

type fakeReg struct {
	mask  api.EventType
	cb    api.ReadinessCallback
	armed bool
}

// Call records one Register or Unregister invocation.
type Call struct {
	Op   string // "register" or "unregister"
	Fd   int
	Mask api.EventType
}

var _ api.Reactor = (*Reactor)(nil)

// NewReactor creates an empty fake reactor.
func NewReactor() *Reactor {
	return &Reactor{
		regs:     make(map[int]*fakeReg),
		last:     make(map[int]api.ReadinessCallback),
		failures: make(map[int]error),
	}
}

// FailRegister makes the next Register for fd return err.
func (f *Reactor) FailRegister(fd int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[fd] = err
}

func (f *Reactor) Register(fd int, mask api.EventType, cb api.ReadinessCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "register", Fd: fd, Mask: mask})
	if f.closed {
		return api.ErrClosed
	}
	if err, ok := f.failures[fd]; ok {
		delete(f.failures, fd)
		return err
	}
	f.regs[fd] = &fakeReg{mask: mask, cb: cb, armed: true}
	f.last[fd] = cb
	return nil
}

func (f *Reactor) Unregister(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "unregister", Fd: fd})
	delete(f.regs, fd)
	return nil
}

func (f *Reactor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.regs = make(map[int]*fakeReg)
	return nil
}

// Fire reports events on fd if it is registered and armed, then disarms it.
// It returns false when nothing was delivered.
func (f *Reactor) Fire(fd int, events api.EventType) bool {
	f.mu.Lock()
	reg, ok := f.regs[fd]
	if !ok || !reg.armed {
		f.mu.Unlock()
		return false
	}
	reg.armed = false
	cb := reg.cb
	f.mu.Unlock()

	cb(fd, events)
	return true
}

// FireLate invokes the most recent callback registered for fd regardless
// of the current registration state.
func (f *Reactor) FireLate(fd int, events api.EventType) bool {
	f.mu.Lock()
	cb, ok := f.last[fd]
	f.mu.Unlock()
	if !ok {
		return false
	}
	cb(fd, events)
	return true
}

// Registered returns the mask fd is registered with.
func (f *Reactor) Registered(fd int) (api.EventType, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[fd]
	if !ok {
		return api.EventNone, false
	}
	return reg.mask, true
}

// Calls returns a copy of every recorded invocation.
func (f *Reactor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Closed reports whether Close was called.
func (f *Reactor) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
