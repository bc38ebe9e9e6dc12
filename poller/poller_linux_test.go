//go:build linux

package poller_test

import (
	"context"
	"testing"
	"time"

	"code.cloudfoundry.org/lager/v3/lagertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-poller/api"
	"github.com/momentics/hioload-poller/poller"
	"github.com/momentics/hioload-poller/reactor"
)

func newEpollPoller(t *testing.T) *poller.Poller {
	t.Helper()
	logger := lagertest.NewTestLogger("epoll-poller")
	r, err := reactor.New(reactor.WithLogger(logger))
	require.NoError(t, err)
	p := poller.New(r, poller.WithLogger(logger), poller.WithOwnedReactor())
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func pipe(t *testing.T) (int, int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestEpollPoller_ReadableOncePerArm(t *testing.T) {
	p := newEpollPoller(t)
	rd, wr := pipe(t)

	require.NoError(t, p.Add(rd, api.EventRead))
	_, err := unix.Write(wr, []byte("ping"))
	require.NoError(t, err)

	ev, status := p.NextEvent(context.Background(), api.DeadlineFromDuration(2*time.Second))
	require.Equal(t, api.StatusSuccess, status)
	assert.Equal(t, rd, ev.Fd)
	assert.True(t, ev.Type.Has(api.EventRead))

	// The pipe is still readable, but nothing is reported without re-arming.
	_, status = p.NextEvent(context.Background(), api.DeadlineFromDuration(50*time.Millisecond))
	assert.Equal(t, api.StatusNoEvents, status)

	require.NoError(t, p.Add(rd, api.EventRead))
	_, status = p.NextEvent(context.Background(), api.DeadlineFromDuration(2*time.Second))
	assert.Equal(t, api.StatusSuccess, status)
}

func TestEpollPoller_RemoveBeforeClose(t *testing.T) {
	p := newEpollPoller(t)
	rd, wr := pipe(t)

	require.NoError(t, p.Add(rd, api.EventRead))
	_, err := unix.Write(wr, []byte("x"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.Pending() > 0 }, 2*time.Second, time.Millisecond)
	p.Remove(rd)

	_, status := p.NextEventNoblock()
	assert.Equal(t, api.StatusNoEvents, status)
}

func TestEpollPoller_InterruptFromAnotherGoroutine(t *testing.T) {
	p := newEpollPoller(t)
	rd, _ := pipe(t)
	require.NoError(t, p.Add(rd, api.EventRead))

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Interrupt()
	}()

	ev, status := p.NextEvent(context.Background(), api.Unreachable())
	require.Equal(t, api.StatusInterrupt, status)
	assert.Equal(t, api.InvalidFd, ev.Fd)
}

func TestEpollPoller_BadDescriptor(t *testing.T) {
	p := newEpollPoller(t)

	err := p.Add(1<<20, api.EventRead)
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EBADF)
	assert.Equal(t, 0, p.Len())
}
