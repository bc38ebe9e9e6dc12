// File: internal/concurrency/mpsc_queue.go
// Package concurrency provides the event queue between reactors and pollers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unbounded multi-producer/single-consumer queue. Producers never wait for
// capacity; the consumer can poll or block with a deadline and a context.

package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-poller/api"
)

// PopResult tells why a blocking pop returned.
type PopResult int

const (
	PopOK        PopResult = iota // an item was dequeued
	PopTimeout                    // the deadline passed first
	PopCancelled                  // the context was cancelled first
)

// MpscQueue is a FIFO with many producers and one consumer.
type MpscQueue[T any] struct {
	mu     sync.Mutex
	items  *queue.Queue
	notify chan struct{} // one-slot wakeup for the consumer
	taken  atomic.Bool
}

// NewMpscQueue creates an empty queue.
func NewMpscQueue[T any]() *MpscQueue[T] {
	return &MpscQueue[T]{
		items:  queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Producer is a goroutine-safe handle for pushing items.
type Producer[T any] struct {
	q *MpscQueue[T]
}

// Consumer is the single handle allowed to pop items.
type Consumer[T any] struct {
	q *MpscQueue[T]
}

// Producer returns a new producer handle. Any number may exist.
func (q *MpscQueue[T]) Producer() Producer[T] {
	return Producer[T]{q: q}
}

// Consumer hands out the consumer handle once.
func (q *MpscQueue[T]) Consumer() (Consumer[T], error) {
	if !q.taken.CompareAndSwap(false, true) {
		return Consumer[T]{}, ErrConsumerTaken
	}
	return Consumer[T]{q: q}, nil
}

// Len returns the number of queued items.
func (q *MpscQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Push appends v. It never blocks on capacity.
func (p Producer[T]) Push(v T) {
	q := p.q
	q.mu.Lock()
	q.items.Add(v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop dequeues the head item if there is one.
func (c Consumer[T]) TryPop() (T, bool) {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		var zero T
		return zero, false
	}
	return q.items.Remove().(T), true
}

// Pop dequeues the head item, waiting until one is pushed, the deadline
// passes or ctx is cancelled. An item already queued is returned even if
// the deadline has passed. Items pushed after expiry stay queued.
func (c Consumer[T]) Pop(ctx context.Context, deadline api.Deadline) (T, PopResult) {
	var zero T
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if v, ok := c.TryPop(); ok {
			return v, PopOK
		}
		if ctx.Err() != nil {
			return zero, PopCancelled
		}
		if deadline.Passed() {
			return zero, PopTimeout
		}

		var expired <-chan time.Time
		if deadline.IsReachable() {
			if timer == nil {
				timer = time.NewTimer(deadline.TimeLeft())
			}
			expired = timer.C
		}

		select {
		case <-c.q.notify:
		case <-expired:
			return zero, PopTimeout
		case <-ctx.Done():
			return zero, PopCancelled
		}
	}
}

// Drain drops every queued item and returns how many were dropped.
func (c Consumer[T]) Drain() int {
	q := c.q
	q.mu.Lock()
	n := q.items.Length()
	q.items = queue.New()
	q.mu.Unlock()

	select {
	case <-q.notify:
	default:
	}
	return n
}

// Len returns the number of queued items.
func (c Consumer[T]) Len() int {
	return c.q.Len()
}
