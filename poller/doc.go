// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package poller implements the readiness multiplexer of the cooperative
// I/O runtime.
//
// A Poller keeps a private table of watched descriptors. Each Add arms one
// notification and stamps it with a fresh epoch; the reactor callback
// captures the descriptor, mask and epoch by value and pushes an event onto
// an MPSC queue. The consumer side reconciles every queued event against the
// table: events of removed descriptors, superseded arms or arms that already
// delivered are dropped. Interrupt pushes a sentinel through the same queue,
// so it keeps FIFO order with readiness events.
package poller
