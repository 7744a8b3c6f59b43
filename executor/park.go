package executor

import (
	"time"
)

type (
	// Park blocks the driving goroutine until woken. It is implemented by the
	// reactor (epoll), the timer (which wraps another Park), and ParkThread.
	//
	// Park and ParkTimeout must only be called by the goroutine driving the
	// executor. Either may return spuriously.
	Park interface {
		// Park blocks until Unpark is called, or an event source becomes ready.
		Park() error

		// ParkTimeout is as Park, but returns after at most d. A zero d polls
		// event sources without blocking.
		ParkTimeout(d time.Duration) error

		// Unpark returns the handle used to wake this Park.
		Unpark() Unpark
	}

	// Unpark wakes a Park. It is safe for concurrent use.
	Unpark interface {
		Unpark()
	}

	// UnparkFunc adapts a function to the Unpark interface.
	UnparkFunc func()

	// ParkThread is a Park without event sources, that blocks on a channel.
	// It suits executors that are only woken by wakers.
	ParkThread struct {
		ch chan struct{}
	}
)

var (
	_ Park   = (*ParkThread)(nil)
	_ Unpark = UnparkFunc(nil)
)

// Unpark implements Unpark.
func (f UnparkFunc) Unpark() { f() }

// NewParkThread returns a ready to use ParkThread.
func NewParkThread() *ParkThread {
	return &ParkThread{ch: make(chan struct{}, 1)}
}

// Park implements Park.
func (p *ParkThread) Park() error {
	<-p.ch
	return nil
}

// ParkTimeout implements Park.
func (p *ParkThread) ParkTimeout(d time.Duration) error {
	if d <= 0 {
		select {
		case <-p.ch:
		default:
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.ch:
	case <-t.C:
	}
	return nil
}

// Unpark implements Park.
func (p *ParkThread) Unpark() Unpark {
	return UnparkFunc(func() {
		select {
		case p.ch <- struct{}{}:
		default:
		}
	})
}
