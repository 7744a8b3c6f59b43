//go:build linux

package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-rt/executor"
)

func newReactor(t *testing.T) *Reactor {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// newPipe returns a non-blocking pipe, closed on cleanup.
func newPipe(t *testing.T) (rfd, wfd int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func countingContext() (*executor.Context, *atomic.Int32) {
	var wakes atomic.Int32
	return executor.NewContext(executor.NewWaker(func() { wakes.Add(1) })), &wakes
}

func TestReactor_PipeReadiness(t *testing.T) {
	r := newReactor(t)
	rfd, wfd := newPipe(t)

	reg, err := r.Handle().Register(rfd, EventRead)
	require.NoError(t, err)
	assert.Equal(t, rfd, reg.FD())
	assert.Equal(t, EventRead, reg.Interest())

	cx, wakes := countingContext()
	ready, err := reg.PollReady(cx, EventRead)
	require.NoError(t, err)
	assert.Zero(t, ready)

	n, err := r.Turn(0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(0), wakes.Load())

	_, err = unix.Write(wfd, []byte("x"))
	require.NoError(t, err)

	n, err = r.Turn(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), wakes.Load())

	ready, err = reg.PollReady(cx, EventRead)
	require.NoError(t, err)
	assert.Equal(t, EventRead, ready&EventRead)

	// readiness persists until cleared
	ready, err = reg.PollReady(cx, EventRead)
	require.NoError(t, err)
	assert.NotZero(t, ready)

	buf := make([]byte, 8)
	_, err = unix.Read(rfd, buf)
	require.NoError(t, err)
	_, err = unix.Read(rfd, buf)
	require.ErrorIs(t, err, unix.EAGAIN)
	reg.ClearReady(EventRead)

	ready, err = reg.PollReady(cx, EventRead)
	require.NoError(t, err)
	assert.Zero(t, ready)

	require.NoError(t, reg.Deregister())
	require.NoError(t, reg.Deregister())
	assert.Equal(t, int32(2), wakes.Load(), "deregister wakes the waiting task")

	_, err = reg.PollReady(cx, EventRead)
	assert.ErrorIs(t, err, ErrDeregistered)
}

func TestReactor_Hangup(t *testing.T) {
	r := newReactor(t)
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	rfd, wfd := fds[0], fds[1]
	defer unix.Close(rfd)

	reg, err := r.Handle().Register(rfd, EventRead)
	require.NoError(t, err)
	defer reg.Deregister()

	require.NoError(t, unix.Close(wfd))
	_, err = r.Turn(time.Second)
	require.NoError(t, err)

	cx, _ := countingContext()
	ready, err := reg.PollReady(cx, EventWrite)
	require.NoError(t, err)
	assert.NotZero(t, ready&EventHangup, "hangup matches any interest")
}

func TestReactor_WriteReadinessAndModify(t *testing.T) {
	r := newReactor(t)
	_, wfd := newPipe(t)

	reg, err := r.Handle().Register(wfd, EventRead)
	require.NoError(t, err)
	defer reg.Deregister()

	require.NoError(t, reg.Modify(EventWrite))
	assert.Equal(t, EventWrite, reg.Interest())

	n, err := r.Turn(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, EventWrite, reg.Readiness()&EventWrite)
}

func TestReactor_RegisterErrors(t *testing.T) {
	r := newReactor(t)
	rfd, _ := newPipe(t)

	_, err := r.Handle().Register(-1, EventRead)
	assert.ErrorIs(t, err, ErrInvalidFD)

	reg, err := r.Handle().Register(rfd, EventRead)
	require.NoError(t, err)
	_, err = r.Handle().Register(rfd, EventRead)
	assert.ErrorIs(t, err, ErrFDAlreadyRegistered)
	require.NoError(t, reg.Deregister())
}

func TestReactor_UnparkFromAnotherGoroutine(t *testing.T) {
	r := newReactor(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Unpark().Unpark()
		r.Unpark().Unpark()
	}()

	done := make(chan error, 1)
	go func() { done <- r.Park() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Park was not unparked")
	}
}

func TestReactor_UnparkBeforePark(t *testing.T) {
	r := newReactor(t)
	r.Unpark().Unpark()

	start := time.Now()
	require.NoError(t, r.ParkTimeout(5*time.Second))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestReactor_ParkTimeout(t *testing.T) {
	r := newReactor(t)
	start := time.Now()
	require.NoError(t, r.ParkTimeout(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	turns, _ := r.Stats()
	assert.Equal(t, uint64(1), turns)
}

func TestReactor_Close(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	rfd, _ := newPipe(t)

	h := r.Handle()
	reg, err := h.Register(rfd, EventRead)
	require.NoError(t, err)
	cx, wakes := countingContext()
	_, err = reg.PollReady(cx, EventRead)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.True(t, h.Closed())
	assert.Equal(t, int32(1), wakes.Load())

	_, err = reg.PollReady(cx, EventRead)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.Register(rfd, EventRead)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Turn(0)
	assert.ErrorIs(t, err, ErrClosed)
	r.Unpark().Unpark()
}

func TestReactor_DrivesExecutor(t *testing.T) {
	r := newReactor(t)
	rfd, wfd := newPipe(t)

	ct, err := executor.NewParkedOn(r)
	require.NoError(t, err)
	permit, err := executor.Acquire()
	require.NoError(t, err)
	defer permit.Exit()
	en, err := ct.Enter(permit)
	require.NoError(t, err)
	defer en.Exit()

	reg, err := r.Handle().Register(rfd, EventRead)
	require.NoError(t, err)
	defer reg.Deregister()

	var got []byte
	h := en.Spawn(executor.FutureFunc(func(cx *executor.Context) (bool, error) {
		for {
			ready, err := reg.PollReady(cx, EventRead)
			if err != nil || ready == 0 {
				return false, err
			}
			buf := make([]byte, 16)
			n, err := unix.Read(rfd, buf)
			if err == unix.EAGAIN {
				reg.ClearReady(EventRead)
				continue
			}
			if err != nil {
				return true, err
			}
			got = append(got, buf[:n]...)
			return true, nil
		}
	}))

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = unix.Write(wfd, []byte("hello"))
	}()

	require.NoError(t, en.Run())
	assert.Equal(t, executor.StateCompleted, h.State())
	assert.Equal(t, "hello", string(got))
}

func TestWithDefault(t *testing.T) {
	_, err := DefaultHandle()
	require.ErrorIs(t, err, ErrNoReactor)

	r := newReactor(t)
	permit, err := executor.Acquire()
	require.NoError(t, err)
	defer permit.Exit()

	h := r.Handle()
	assert.Panics(t, func() {
		_ = WithDefault(h, permit, func(*executor.Enter) error {
			cur, err := DefaultHandle()
			require.NoError(t, err)
			assert.Same(t, h, cur)
			panic("boom")
		})
	})
	_, err = DefaultHandle()
	assert.ErrorIs(t, err, ErrNoReactor)

	assert.ErrorIs(t, WithDefault(h, nil, func(*executor.Enter) error { return nil }), executor.ErrNotEntered)
}

func TestIOEvents_String(t *testing.T) {
	for _, tc := range []struct {
		events IOEvents
		want   string
	}{
		{0, "none"},
		{EventRead, "read"},
		{EventRead | EventHangup, "read|hangup"},
		{EventWrite | EventError, "write|error"},
	} {
		assert.Equal(t, tc.want, tc.events.String())
	}
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, -1, timeoutMillis(-1))
	assert.Equal(t, 0, timeoutMillis(0))
	assert.Equal(t, 1, timeoutMillis(time.Microsecond))
	assert.Equal(t, 2, timeoutMillis(1500*time.Microsecond))
}
