//go:build !linux && !darwin && !freebsd
// +build !linux,!darwin,!freebsd

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-poller/api"

// New returns api.ErrNotSupported on platforms without epoll or kqueue.
func New(opts ...Option) (api.Reactor, error) {
	_ = newConfig(opts)
	return nil, api.WrapError(api.ErrCodeNotSupported, "reactor: this platform is not supported", api.ErrNotSupported)
}
