// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer for hioload-poller.
//
// Provides concurrent-safe state handling primitives including:
//   - Counters and gauges pollers publish delivery statistics into
//   - State export, debug hooks, and probe registration
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
