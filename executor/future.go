package executor

import (
	"sync/atomic"
)

type (
	// Future is a unit of asynchronous work, advanced by polling.
	//
	// Poll returns true once the future has finished, along with its outcome.
	// If it returns false, it must have arranged for cx.Waker() to be woken
	// once progress is possible, otherwise it will never be polled again.
	// A non-nil error finishes the future regardless of the bool.
	Future interface {
		Poll(cx *Context) (bool, error)
	}

	// FutureFunc adapts a function to the Future interface.
	FutureFunc func(cx *Context) (bool, error)

	// Context is passed to Future.Poll.
	Context struct {
		waker *Waker
		task  *task
	}

	// Waker makes a suspended task runnable again. It is safe to call Wake
	// from any goroutine, any number of times.
	Waker struct {
		fn func()
	}
)

var (
	_ Future = FutureFunc(nil)
	_ Future = (*readyFuture)(nil)
	_ Future = (*lazyFuture)(nil)
)

// Poll implements Future.
func (f FutureFunc) Poll(cx *Context) (bool, error) {
	return f(cx)
}

// NewWaker returns a Waker that calls fn, e.g. for polling futures outside of
// an executor.
func NewWaker(fn func()) *Waker {
	return &Waker{fn: fn}
}

// Wake schedules the associated task. A nil Waker is a no-op.
func (w *Waker) Wake() {
	if w != nil && w.fn != nil {
		w.fn()
	}
}

// NewContext returns a Context carrying the given waker, without a task.
func NewContext(waker *Waker) *Context {
	return &Context{waker: waker}
}

// Waker returns the waker for the task being polled.
func (cx *Context) Waker() *Waker {
	if cx == nil {
		return nil
	}
	return cx.waker
}

// TaskID returns the ID of the task being polled, or 0.
func (cx *Context) TaskID() uint64 {
	if cx == nil || cx.task == nil {
		return 0
	}
	return cx.task.id
}

// Canceled reports whether the task being polled has been canceled. Polling
// continues to the next suspension point regardless; the task is removed
// once the current poll returns.
func (cx *Context) Canceled() bool {
	if cx == nil || cx.task == nil {
		return false
	}
	return cx.task.cancelRequested.Load()
}

type readyFuture struct{ err error }

func (f *readyFuture) Poll(*Context) (bool, error) { return true, f.err }

// Ready returns a future that is immediately ready with err.
func Ready(err error) Future {
	return &readyFuture{err: err}
}

type lazyFuture struct {
	fn   func() error
	done atomic.Bool
}

func (f *lazyFuture) Poll(*Context) (bool, error) {
	if f.done.Swap(true) {
		return true, nil
	}
	return true, f.fn()
}

// Lazy returns a future that runs fn on its first poll.
func Lazy(fn func() error) Future {
	return &lazyFuture{fn: fn}
}
