// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for the OS readiness notifier
// (epoll, kqueue) a Poller registers descriptors with.

package api

// ReadinessCallback receives the readiness set the OS reported for fd.
// It runs on the reactor's delivery path and must not block.
type ReadinessCallback func(fd int, events EventType)

// Reactor wraps an OS-level event-notification primitive.
type Reactor interface {
	// Register ensures fd is watched for mask and arms one notification.
	// Calling it again for the same fd replaces mask and callback and re-arms.
	Register(fd int, mask EventType, cb ReadinessCallback) error

	// Unregister removes the OS registration. Unknown or already closed
	// descriptors are not an error.
	Unregister(fd int) error

	// Close stops event delivery and releases the notifier handle.
	Close() error
}
