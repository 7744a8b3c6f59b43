package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

type (
	// CurrentThread is a cooperative scheduler, driven by whichever goroutine
	// enters it, and parked on a Park (typically a timer over a reactor) while
	// idle.
	CurrentThread struct {
		park    Park
		sched   *scheduler
		running atomic.Bool
	}

	// Entered is a CurrentThread being driven by the calling goroutine. It is
	// only valid on that goroutine, until Exit.
	Entered struct {
		executor *CurrentThread
		enter    *Enter
		restore  func()
		exited   atomic.Bool
	}

	// Handle spawns onto a CurrentThread from any goroutine. Tasks are polled
	// the next time the executor is driven.
	Handle struct {
		sched *scheduler
	}

	// Turn reports the outcome of Entered.Turn.
	Turn struct {
		Polled int
	}
)

var _ Executor = (*Handle)(nil)

// NewParkedOn creates an executor that blocks on park when idle.
func NewParkedOn(park Park, opts ...Option) (*CurrentThread, error) {
	if park == nil {
		return nil, fmt.Errorf("executor: nil park")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &CurrentThread{
		park:  park,
		sched: newScheduler(park.Unpark(), cfg),
	}, nil
}

// New creates an executor parked on a ParkThread, i.e. without timer or I/O
// support.
func New(opts ...Option) (*CurrentThread, error) {
	return NewParkedOn(NewParkThread(), opts...)
}

// Enter starts driving the executor on the calling goroutine, which must own
// enter. Until Exit, CurrentTaskExecutor resolves to it.
func (e *CurrentThread) Enter(enter *Enter) (*Entered, error) {
	if err := enter.Check(); err != nil {
		return nil, err
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	e.sched.driver.Store(enter.owner)
	en := &Entered{
		executor: e,
		enter:    enter,
	}
	en.restore = entered.Push(en)
	return en, nil
}

// Handle returns a handle for spawning from any goroutine.
func (e *CurrentThread) Handle() *Handle {
	return &Handle{sched: e.sched}
}

// Stats returns a snapshot of the executor's counters.
func (e *CurrentThread) Stats() Stats {
	st := e.sched.stats.snapshot()
	st.Live, st.Queued = e.sched.counts()
	return st
}

// Close drops every outstanding task, without polling it, leaving it
// StateCanceled. Subsequent spawns fail with ErrClosed. Close fails with
// ErrAlreadyRunning while the executor is entered.
func (e *CurrentThread) Close() error {
	if e.running.Load() {
		return ErrAlreadyRunning
	}
	e.sched.close()
	return nil
}

// Spawn implements Executor.
func (h *Handle) Spawn(f Future) (*JoinHandle, error) {
	return h.sched.spawn(f)
}

// Spawn queues f on the entered executor. It panics with ErrNilFuture if f
// is nil.
func (e *Entered) Spawn(f Future) *JoinHandle {
	h, err := e.executor.sched.spawn(f)
	if err != nil {
		panic(fmt.Errorf("executor: spawn: %w", err))
	}
	return h
}

// Handle returns a spawn handle for the entered executor.
func (e *Entered) Handle() *Handle {
	return e.executor.Handle()
}

// LastTaskID returns the ID of the most recently spawned task, zero if none.
// Together with CancelAfter it scopes the tasks spawned by a block of code.
func (e *Entered) LastTaskID() uint64 {
	return e.executor.sched.lastID()
}

// CancelAfter cancels every non-terminal task spawned after the task with the
// given ID, e.g. as returned by LastTaskID, returning how many were removed
// immediately. Tasks being polled are canceled when their poll returns
// pending.
func (e *Entered) CancelAfter(id uint64) int {
	return e.executor.sched.cancelAfter(id)
}

// Turn performs a single iteration: if no task is runnable, it parks for up
// to timeout (negative blocks until woken), then polls the runnable tasks
// once each.
func (e *Entered) Turn(timeout time.Duration) (Turn, error) {
	if err := e.check(); err != nil {
		return Turn{}, err
	}
	s := e.executor.sched
	if _, queued := s.counts(); queued != 0 {
		timeout = 0
	}
	if err := e.parkFor(timeout); err != nil {
		return Turn{}, err
	}
	return Turn{Polled: s.tick()}, nil
}

// Run drives the executor until no live tasks remain. Task failures do not
// stop it; only park errors are returned.
func (e *Entered) Run() error {
	return e.RunContext(context.Background())
}

// RunContext is Run, but returns ctx.Err() once ctx is done, leaving any
// outstanding tasks queued.
func (e *Entered) RunContext(ctx context.Context) error {
	if err := e.check(); err != nil {
		return err
	}

	if done := ctx.Done(); done != nil {
		stop := make(chan struct{})
		defer close(stop)
		unpark := e.executor.park.Unpark()
		go func() {
			select {
			case <-done:
				unpark.Unpark()
			case <-stop:
			}
		}()
	}

	s := e.executor.sched
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.tick()

		live, queued := s.counts()
		if live == 0 {
			return nil
		}

		timeout := time.Duration(-1)
		if queued != 0 {
			timeout = 0
		}
		if err := e.parkFor(timeout); err != nil {
			return err
		}
	}
}

func (e *Entered) parkFor(timeout time.Duration) error {
	s := e.executor.sched
	s.stats.parks.Add(1)

	var err error
	if timeout < 0 {
		err = e.executor.park.Park()
	} else {
		err = e.executor.park.ParkTimeout(timeout)
	}
	if err != nil {
		s.opts.logger.Err().
			Err(err).
			Log(`executor: park failed`)
		return fmt.Errorf("executor: park: %w", err)
	}
	return nil
}

// Exit stops driving the executor. It is idempotent.
func (e *Entered) Exit() {
	if e.exited.Swap(true) {
		return
	}
	e.restore()
	e.executor.sched.driver.Store(0)
	e.executor.running.Store(false)
}

func (e *Entered) check() error {
	if e.exited.Load() {
		return ErrNotEntered
	}
	return e.enter.Check()
}
