// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// control_test.go: MetricsRegistry counters and DebugProbes registration.
package control_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-poller/control"
)

func TestMetricsRegistry_Basic(t *testing.T) {
	reg := control.NewMetricsRegistry()
	reg.Set("foo.count", int64(42))
	reg.Set("bar.status", "ok")

	metrics := reg.GetSnapshot()
	assert.Equal(t, int64(42), metrics["foo.count"])
	assert.Equal(t, "ok", metrics["bar.status"])
	assert.False(t, reg.Updated().IsZero())

	reg.Delete("bar.status")
	_, ok := reg.Get("bar.status")
	assert.False(t, ok)
}

func TestMetricsRegistry_ConcurrentAdd(t *testing.T) {
	reg := control.NewMetricsRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Add("poller.delivered", 1)
			}
		}()
	}
	wg.Wait()

	v, ok := reg.Get("poller.delivered")
	require.True(t, ok)
	assert.Equal(t, int64(1600), v)
}

func TestMetricsRegistry_AddOverwritesNonCounter(t *testing.T) {
	reg := control.NewMetricsRegistry()
	reg.Set("k", "text")
	assert.Equal(t, int64(3), reg.Add("k", 3))
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	dp.RegisterProbe("poller.x.state", func() any { return 7 })

	state := dp.DumpState()
	assert.Equal(t, 7, state["poller.x.state"])
	assert.Contains(t, state, "platform.cpus")
	assert.Contains(t, dp.Names(), "platform.notifier")

	dp.UnregisterProbe("poller.x.state")
	assert.NotContains(t, dp.DumpState(), "poller.x.state")
}

func TestDebugProbes_ProbeMayUnregisterItself(t *testing.T) {
	dp := control.NewDebugProbes()
	dp.RegisterProbe("once", func() any {
		dp.UnregisterProbe("once")
		return true
	})

	assert.Equal(t, true, dp.DumpState()["once"])
	assert.Empty(t, dp.Names())
}
