// Package api
// Author: momentics
//
// Live debug and runtime counter contracts.

package api

// Debug exposes runtime introspection and health API.
type Debug interface {
	// DumpState emits a snapshot of system state for diagnostics.
	DumpState() map[string]any

	// RegisterProbe dynamically registers new debug probes.
	RegisterProbe(name string, fn func() any)

	// UnregisterProbe drops a probe; unknown names are ignored.
	UnregisterProbe(name string)
}

// Metrics is a sink for named runtime values.
type Metrics interface {
	Set(key string, value any)

	// Add increments an integer counter and returns its new value.
	Add(key string, delta int64) int64
}
