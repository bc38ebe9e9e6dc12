// File: poller/options.go
// Package poller defines functional options for the Poller.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package poller

import (
	"code.cloudfoundry.org/lager/v3"

	"github.com/momentics/hioload-poller/api"
)

// Config holds the resolved construction parameters of a Poller.
type Config struct {
	Logger       lager.Logger // parent logger, a "poller" session is derived from it
	Metrics      api.Metrics  // optional counters sink
	Probes       api.Debug    // optional debug probe registry
	OwnedReactor bool         // Close also closes the reactor
}

// DefaultConfig returns a config that logs nowhere and publishes nothing.
func DefaultConfig() *Config {
	return &Config{
		Logger: lager.NewLogger("hioload-poller"),
	}
}

// Option customizes Poller initialization.
type Option func(*Config)

// WithLogger sets the parent logger.
func WithLogger(logger lager.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMetrics publishes delivery counters into reg.
func WithMetrics(reg api.Metrics) Option {
	return func(c *Config) {
		c.Metrics = reg
	}
}

// WithDebugProbes registers a watcher/queue probe in dp.
func WithDebugProbes(dp api.Debug) Option {
	return func(c *Config) {
		c.Probes = dp
	}
}

// WithOwnedReactor makes Close release the reactor too.
func WithOwnedReactor() Option {
	return func(c *Config) {
		c.OwnedReactor = true
	}
}
