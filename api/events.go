// File: api/events.go
// Package api defines core event types for hioload-poller.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "strings"

// InvalidFd is the descriptor carried by interrupt events.
const InvalidFd = -1

// EventType is a set of readiness conditions for a file descriptor.
type EventType uint8

const (
	EventNone  EventType = 0      // no active event (or interruption)
	EventRead  EventType = 1 << 0 // descriptor is ready for reading
	EventWrite EventType = 1 << 1 // descriptor is ready for writing
	EventError EventType = 1 << 2 // descriptor is in error state, always awaited
)

const eventAll = EventRead | EventWrite | EventError

// Has reports whether every bit of o is set in t.
func (t EventType) Has(o EventType) bool {
	return t&o == o
}

// Any reports whether t and o share at least one bit.
func (t EventType) Any(o EventType) bool {
	return t&o != 0
}

// Valid reports whether t holds only known bits.
func (t EventType) Valid() bool {
	return t&^eventAll == 0
}

// WithImplicit adds EventError when Read or Write is requested.
func (t EventType) WithImplicit() EventType {
	if t.Any(EventRead | EventWrite) {
		return t | EventError
	}
	return t
}

func (t EventType) String() string {
	if t == EventNone {
		return "none"
	}
	parts := make([]string, 0, 3)
	if t.Any(EventRead) {
		parts = append(parts, "read")
	}
	if t.Any(EventWrite) {
		parts = append(parts, "write")
	}
	if t.Any(EventError) {
		parts = append(parts, "error")
	}
	if !t.Valid() {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

// Event is a single readiness notification.
type Event struct {
	Fd    int       // descriptor responsible for the event
	Type  EventType // triggered event types
	Epoch uint64    // arm generation the event was produced under
}

// InterruptEvent returns the sentinel pushed by Poller.Interrupt.
func InterruptEvent() Event {
	return Event{Fd: InvalidFd, Type: EventNone}
}

// IsInterrupt reports whether e is the interrupt sentinel.
func (e Event) IsInterrupt() bool {
	return e.Fd == InvalidFd
}

// Status is the outcome of an event retrieval.
type Status int

const (
	StatusSuccess   Status = iota // received an event
	StatusInterrupt               // received an interrupt request
	StatusNoEvents                // nothing available, deadline passed or caller cancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInterrupt:
		return "interrupt"
	case StatusNoEvents:
		return "no-events"
	default:
		return "unknown"
	}
}
