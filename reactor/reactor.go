// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral options and helpers shared by the epoll and kqueue
// reactors.

package reactor

import (
	"fmt"

	"code.cloudfoundry.org/lager/v3"

	"github.com/momentics/hioload-poller/api"
)

const defaultMaxEvents = 128

// Option customizes reactor construction.
type Option func(*config)

type config struct {
	logger    lager.Logger
	maxEvents int
}

// WithLogger sets the logger used for delivery-path failures.
func WithLogger(logger lager.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMaxEvents overrides how many OS events are fetched per wait.
func WithMaxEvents(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEvents = n
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{maxEvents: defaultMaxEvents}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = lager.NewLogger("hioload-poller")
	}
	return cfg
}

// registration is what the reactor remembers per descriptor.
type registration struct {
	mask  api.EventType
	cb    api.ReadinessCallback
	token int32
}

// deliver runs cb and keeps the reactor loop alive if it panics.
func deliver(logger lager.Logger, fd int, events api.EventType, cb api.ReadinessCallback) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("callback-panicked", fmt.Errorf("%v", rec), lager.Data{"fd": fd})
		}
	}()
	cb(fd, events)
}

func validate(fd int, mask api.EventType, cb api.ReadinessCallback) error {
	if fd < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "reactor: negative descriptor").WithContext("fd", fd)
	}
	if !mask.Valid() || !mask.Any(api.EventRead|api.EventWrite) {
		return api.NewError(api.ErrCodeInvalidArgument, "reactor: mask must include read or write").
			WithContext("mask", mask.String())
	}
	if cb == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "reactor: nil callback").WithContext("fd", fd)
	}
	return nil
}
