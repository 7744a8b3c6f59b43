package timer

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/joeycumines/go-rt/executor"
)

type (
	// Delay is a Future, ready once its deadline has passed. It fails with
	// ErrShutdown if the timer shuts down first.
	Delay struct {
		t *Timer
		e *entry
	}

	// Interval yields ticks at a fixed period, via PollTick. Missed ticks are
	// delivered in a burst, each with its scheduled time.
	Interval struct {
		delay  *Delay
		period time.Duration
	}

	timeoutFuture struct {
		future executor.Future
		delay  *Delay
	}
)

var (
	_ executor.Future  = (*Delay)(nil)
	_ executor.Dropper = (*Delay)(nil)
	_ executor.Dropper = (*Interval)(nil)
	_ executor.Future  = (*timeoutFuture)(nil)
	_ executor.Dropper = (*timeoutFuture)(nil)
)

// Delay returns a Delay, ready at deadline.
func (h *Handle) Delay(deadline time.Time) *Delay {
	return &Delay{t: h.t, e: h.t.register(deadline)}
}

// Sleep returns a Delay, ready once d has elapsed from now.
func (h *Handle) Sleep(d time.Duration) *Delay {
	return h.Delay(h.Now().Add(d))
}

// Interval returns an Interval whose first tick is at start. It panics if
// period is not positive.
func (h *Handle) Interval(start time.Time, period time.Duration) *Interval {
	if period <= 0 {
		panic(fmt.Errorf("timer: non-positive interval period: %v", period))
	}
	return &Interval{delay: h.Delay(start), period: period}
}

// Timeout wraps f, failing with ErrTimeout if it is not ready within d.
func (h *Handle) Timeout(f executor.Future, d time.Duration) executor.Future {
	return &timeoutFuture{future: f, delay: h.Sleep(d)}
}

// Deadline returns the deadline.
func (x *Delay) Deadline() time.Time {
	x.t.mu.Lock()
	defer x.t.mu.Unlock()
	return x.e.deadline
}

// Poll implements executor.Future.
func (x *Delay) Poll(cx *executor.Context) (bool, error) {
	t := x.t
	t.mu.Lock()
	defer t.mu.Unlock()

	e := x.e
	if e.err != nil {
		return true, e.err
	}
	if e.fired {
		return true, nil
	}
	if !e.deadline.After(t.clock.Now()) {
		if e.index >= 0 {
			heap.Remove(&t.entries, e.index)
		}
		e.fired = true
		return true, nil
	}
	if e.index < 0 {
		// canceled, so re-register
		if t.shutdown {
			e.err = ErrShutdown
			return true, e.err
		}
		heap.Push(&t.entries, e)
	}
	e.waker = cx.Waker()
	return false, nil
}

// Reset changes the deadline, making the Delay pending again if it had
// fired or was canceled.
func (x *Delay) Reset(deadline time.Time) {
	t := x.t
	t.mu.Lock()
	defer t.mu.Unlock()

	e := x.e
	if e.err != nil {
		return
	}
	e.deadline = deadline
	e.fired = false
	if t.shutdown {
		e.err = ErrShutdown
		return
	}
	t.seq++
	e.seq = t.seq
	if e.index >= 0 {
		heap.Fix(&t.entries, e.index)
	} else {
		heap.Push(&t.entries, e)
	}
}

// Cancel removes the Delay from the timer. Polling it again re-registers it.
func (x *Delay) Cancel() {
	t := x.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if x.e.index >= 0 {
		heap.Remove(&t.entries, x.e.index)
	}
	x.e.waker = nil
}

// Drop implements executor.Dropper.
func (x *Delay) Drop() {
	x.Cancel()
}

// Period returns the interval's period.
func (x *Interval) Period() time.Duration {
	return x.period
}

// PollTick returns the scheduled time of the next tick, once it has passed.
// Until then it returns false, and wakes the task at the tick.
func (x *Interval) PollTick(cx *executor.Context) (time.Time, bool, error) {
	ready, err := x.delay.Poll(cx)
	if err != nil {
		return time.Time{}, true, err
	}
	if !ready {
		return time.Time{}, false, nil
	}
	tick := x.delay.Deadline()
	x.delay.Reset(tick.Add(x.period))
	return tick, true, nil
}

// Cancel stops the interval.
func (x *Interval) Cancel() {
	x.delay.Cancel()
}

// Drop implements executor.Dropper.
func (x *Interval) Drop() {
	x.Cancel()
}

func (x *timeoutFuture) Poll(cx *executor.Context) (bool, error) {
	if ready, err := x.future.Poll(cx); ready || err != nil {
		x.delay.Cancel()
		return true, err
	}
	ready, err := x.delay.Poll(cx)
	if err != nil {
		return true, err
	}
	if ready {
		x.Drop()
		return true, ErrTimeout
	}
	return false, nil
}

func (x *timeoutFuture) Drop() {
	x.delay.Cancel()
	if d, ok := x.future.(executor.Dropper); ok {
		d.Drop()
	}
}
