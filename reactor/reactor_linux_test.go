//go:build linux

package reactor

import (
	"testing"
	"time"

	"code.cloudfoundry.org/lager/v3/lagertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-poller/api"
)

type readiness struct {
	fd     int
	events api.EventType
}

func newPipe(t *testing.T) (int, int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		_ = unix.Close(p[0])
		_ = unix.Close(p[1])
	})
	return p[0], p[1]
}

func newReactor(t *testing.T) (api.Reactor, *lagertest.TestLogger) {
	t.Helper()
	logger := lagertest.NewTestLogger("reactor-test")
	r, err := New(WithLogger(logger), WithMaxEvents(8))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, logger
}

func collector() (chan readiness, api.ReadinessCallback) {
	ch := make(chan readiness, 16)
	return ch, func(fd int, events api.EventType) {
		ch <- readiness{fd: fd, events: events}
	}
}

func expectNone(t *testing.T, ch chan readiness) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected readiness %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEpoll_ReadReadinessIsOneShot(t *testing.T) {
	r, _ := newReactor(t)
	rd, wr := newPipe(t)
	ch, cb := collector()

	require.NoError(t, r.Register(rd, api.EventRead|api.EventError, cb))
	_, err := unix.Write(wr, []byte("x"))
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, rd, got.fd)
		assert.True(t, got.events.Has(api.EventRead))
	case <-time.After(time.Second):
		t.Fatal("no readiness reported")
	}

	// Still readable, but the arm was consumed.
	expectNone(t, ch)

	require.NoError(t, r.Register(rd, api.EventRead|api.EventError, cb))
	select {
	case got := <-ch:
		assert.Equal(t, rd, got.fd)
	case <-time.After(time.Second):
		t.Fatal("re-arm did not report readiness")
	}
}

func TestEpoll_WriteReadiness(t *testing.T) {
	r, _ := newReactor(t)
	_, wr := newPipe(t)
	ch, cb := collector()

	require.NoError(t, r.Register(wr, api.EventWrite|api.EventError, cb))
	select {
	case got := <-ch:
		assert.Equal(t, api.EventWrite, got.events)
	case <-time.After(time.Second):
		t.Fatal("no write readiness reported")
	}
}

func TestEpoll_HangupIsReadiness(t *testing.T) {
	r, _ := newReactor(t)
	rd, wr := newPipe(t)
	ch, cb := collector()

	require.NoError(t, r.Register(rd, api.EventRead|api.EventError, cb))
	require.NoError(t, unix.Close(wr))

	select {
	case got := <-ch:
		assert.True(t, got.events.Has(api.EventRead|api.EventError))
	case <-time.After(time.Second):
		t.Fatal("hangup not reported")
	}
}

func TestEpoll_UnregisterStopsDelivery(t *testing.T) {
	r, _ := newReactor(t)
	rd, wr := newPipe(t)
	ch, cb := collector()

	require.NoError(t, r.Register(rd, api.EventRead|api.EventError, cb))
	require.NoError(t, r.Unregister(rd))
	require.NoError(t, r.Unregister(rd))

	_, err := unix.Write(wr, []byte("x"))
	require.NoError(t, err)
	expectNone(t, ch)
}

func TestEpoll_RegisterReplacesMask(t *testing.T) {
	r, _ := newReactor(t)
	rd, wr := newPipe(t)
	ch, cb := collector()

	// The read end of a pipe never becomes writable.
	require.NoError(t, r.Register(rd, api.EventWrite|api.EventError, cb))
	expectNone(t, ch)

	require.NoError(t, r.Register(rd, api.EventRead|api.EventError, cb))
	_, err := unix.Write(wr, []byte("x"))
	require.NoError(t, err)
	select {
	case got := <-ch:
		assert.Equal(t, api.EventRead, got.events)
	case <-time.After(time.Second):
		t.Fatal("updated registration did not report")
	}
}

func TestEpoll_RegistrationFailureIsReported(t *testing.T) {
	r, _ := newReactor(t)
	rd, _ := newPipe(t)
	_, cb := collector()

	const notOpen = 1 << 20
	err := r.Register(notOpen, api.EventRead|api.EventError, cb)
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EBADF)

	// A failed first registration leaves nothing behind to unregister.
	require.NoError(t, r.Unregister(notOpen))

	err = r.Register(-1, api.EventRead, cb)
	assert.Error(t, err)
	err = r.Register(rd, api.EventError, cb)
	assert.Error(t, err)
}

func TestEpoll_CallbackPanicKeepsLoopAlive(t *testing.T) {
	r, logger := newReactor(t)
	rd1, wr1 := newPipe(t)
	rd2, wr2 := newPipe(t)
	ch, cb := collector()

	require.NoError(t, r.Register(rd1, api.EventRead, func(int, api.EventType) { panic("boom") }))
	_, err := unix.Write(wr1, []byte("x"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, msg := range logger.LogMessages() {
			if msg == "reactor-test.epoll.callback-panicked" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Register(rd2, api.EventRead, cb))
	_, err = unix.Write(wr2, []byte("x"))
	require.NoError(t, err)
	select {
	case got := <-ch:
		assert.Equal(t, rd2, got.fd)
	case <-time.After(time.Second):
		t.Fatal("loop stopped after panic")
	}
}

func TestEpoll_CloseIsIdempotent(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	err = r.Register(0, api.EventRead, func(int, api.EventType) {})
	assert.ErrorIs(t, err, api.ErrClosed)
}

func TestFromEpoll(t *testing.T) {
	assert.Equal(t, api.EventRead, fromEpoll(unix.EPOLLIN, api.EventRead))
	assert.Equal(t, api.EventWrite, fromEpoll(unix.EPOLLOUT, api.EventWrite))
	assert.Equal(t, api.EventRead|api.EventError, fromEpoll(unix.EPOLLHUP, api.EventRead|api.EventError))
	assert.Equal(t, api.EventRead|api.EventWrite|api.EventError,
		fromEpoll(unix.EPOLLERR, api.EventRead|api.EventWrite|api.EventError))
	assert.Equal(t, uint32(unix.EPOLLONESHOT|unix.EPOLLIN|unix.EPOLLRDHUP), toEpoll(api.EventRead|api.EventError))
}
