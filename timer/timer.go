// Package timer implements deadline based futures over an executor.Park.
//
// A Timer wraps another Park (normally the reactor), and is itself the Park
// the executor blocks on: it limits each park to the earliest registered
// deadline, then wakes every task whose deadline has passed, per its Clock.
package timer

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-rt/clock"
	"github.com/joeycumines/go-rt/executor"
	"github.com/joeycumines/go-rt/internal/ambient"
)

var (
	// ErrShutdown is returned by delays pending when, or created after, the
	// timer was shut down.
	ErrShutdown = errors.New("timer: shutdown")

	// ErrTimeout is returned by Timeout futures whose deadline passed first.
	ErrTimeout = errors.New("timer: deadline exceeded")

	// ErrNoTimer indicates there is no ambient timer.
	ErrNoTimer = errors.New("timer: no ambient timer")
)

type (
	// Timer drives registered deadlines. It must be the Park of (at most) one
	// executor.
	Timer struct {
		park     executor.Park
		clock    clock.Clock
		entries  entryHeap
		seq      uint64
		fired    atomic.Uint64
		mu       sync.Mutex
		shutdown bool
	}

	// Handle creates timer futures, from any goroutine.
	Handle struct {
		t *Timer
	}
)

var (
	_ executor.Park = (*Timer)(nil)

	defaults ambient.Stack[*Handle]
)

// New returns a Timer over park, reading time from clk.
func New(park executor.Park, clk clock.Clock) *Timer {
	return &Timer{park: park, clock: clk}
}

// Handle returns a handle to t.
func (t *Timer) Handle() *Handle {
	return &Handle{t: t}
}

// Clock returns the timer's clock.
func (t *Timer) Clock() clock.Clock {
	return t.clock
}

// Park implements executor.Park, blocking until woken or the next deadline.
func (t *Timer) Park() error {
	return t.parkFor(-1)
}

// ParkTimeout implements executor.Park.
func (t *Timer) ParkTimeout(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	return t.parkFor(d)
}

// Unpark implements executor.Park, delegating to the inner Park.
func (t *Timer) Unpark() executor.Unpark {
	return t.park.Unpark()
}

// Pending returns the number of registered deadlines.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Fired returns the number of deadlines that have fired.
func (t *Timer) Fired() uint64 {
	return t.fired.Load()
}

// Shutdown fails every pending delay with ErrShutdown, waking its task, and
// causes subsequent delays to fail immediately. It is idempotent.
func (t *Timer) Shutdown() {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return
	}
	t.shutdown = true
	var wakers []*executor.Waker
	for _, e := range t.entries {
		e.index = -1
		e.err = ErrShutdown
		if e.waker != nil {
			wakers = append(wakers, e.waker)
			e.waker = nil
		}
	}
	t.entries = nil
	t.mu.Unlock()

	for _, w := range wakers {
		w.Wake()
	}
}

// IsShutdown reports whether Shutdown has been called.
func (t *Timer) IsShutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}

// parkFor parks the inner Park for at most timeout (negative is unbounded),
// further limited by the next deadline, then fires expired entries.
func (t *Timer) parkFor(timeout time.Duration) error {
	t.mu.Lock()
	if len(t.entries) != 0 {
		until := t.entries[0].deadline.Sub(t.clock.Now())
		if until < 0 {
			until = 0
		}
		if timeout < 0 || until < timeout {
			timeout = until
		}
	}
	t.mu.Unlock()

	var err error
	if timeout < 0 {
		err = t.park.Park()
	} else {
		err = t.park.ParkTimeout(timeout)
	}

	t.Fire()

	if err != nil {
		return fmt.Errorf("timer: park: %w", err)
	}
	return nil
}

// Fire wakes the tasks of every entry whose deadline is not after the
// current time, returning how many fired. It is called after each park, and
// may be called directly, e.g. after advancing a mock clock.
func (t *Timer) Fire() int {
	var (
		wakers []*executor.Waker
		n      int
	)

	t.mu.Lock()
	now := t.clock.Now()
	for len(t.entries) != 0 && !t.entries[0].deadline.After(now) {
		e := heap.Pop(&t.entries).(*entry)
		e.fired = true
		n++
		if e.waker != nil {
			wakers = append(wakers, e.waker)
			e.waker = nil
		}
	}
	t.mu.Unlock()

	t.fired.Add(uint64(n))
	for _, w := range wakers {
		w.Wake()
	}
	return n
}

// register adds a new entry. After shutdown, the entry fails immediately.
func (t *Timer) register(deadline time.Time) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	e := &entry{deadline: deadline, seq: t.seq, index: -1}
	if t.shutdown {
		e.err = ErrShutdown
		return e
	}
	heap.Push(&t.entries, e)
	return e
}

// Timer returns the handle's timer.
func (h *Handle) Timer() *Timer {
	return h.t
}

// Now returns the current time, per the timer's clock.
func (h *Handle) Now() time.Time {
	return h.t.clock.Now()
}

// IsShutdown reports whether the timer has been shut down.
func (h *Handle) IsShutdown() bool {
	return h.t.IsShutdown()
}

// DefaultHandle returns the ambient timer handle of the calling goroutine.
func DefaultHandle() (*Handle, error) {
	if h, ok := defaults.Current(); ok {
		return h, nil
	}
	return nil, ErrNoTimer
}

// WithDefault runs fn with h as the ambient timer handle of the calling
// goroutine, which must own enter. The previous handle is restored when fn
// returns or panics.
func WithDefault(h *Handle, enter *executor.Enter, fn func(enter *executor.Enter) error) error {
	if err := enter.Check(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("timer: nil default handle")
	}
	return defaults.With(h, func() error { return fn(enter) })
}
