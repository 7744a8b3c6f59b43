package rt

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-rt/clock"
	"github.com/joeycumines/go-rt/executor"
	"github.com/joeycumines/go-rt/reactor"
	"github.com/joeycumines/go-rt/timer"
)

// Runtime owns one of each component. It may be run any number of times,
// sequentially, from any goroutine, until closed.
type Runtime struct {
	id       string
	logger   *logiface.Logger[logiface.Event]
	clock    clock.Clock
	reactor  *reactor.Reactor
	timer    *timer.Timer
	executor *executor.CurrentThread
	runs     int
	mu       sync.Mutex
	closed   bool
}

// newReactor is replaced by tests, to simulate init failures.
var newReactor = reactor.New

// New constructs a Runtime. No tasks are started, and no I/O is performed
// beyond creating the reactor. If the reactor cannot be created, an
// *InitError is returned.
func New(opts ...Option) (*Runtime, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, &InitError{Op: "options", Err: err}
	}

	r, err := newReactor()
	if err != nil {
		return nil, &InitError{Op: "reactor", Err: err}
	}

	tm := timer.New(r, cfg.clock)

	ex, err := executor.NewParkedOn(tm, cfg.executorOpts...)
	if err != nil {
		_ = r.Close()
		return nil, &InitError{Op: "executor", Err: err}
	}

	return &Runtime{
		id:       uuid.Must(uuid.NewV7()).String(),
		logger:   cfg.logger,
		clock:    cfg.clock,
		reactor:  r,
		timer:    tm,
		executor: ex,
	}, nil
}

// Run installs the runtime's components as the calling goroutine's ambient
// defaults, calls setup with the entered executor, then drives the executor
// until no live tasks remain.
//
// Tasks spawned by setup are queued, not run, until setup returns. If setup
// returns an error (or panics), the tasks it spawned are canceled, and Run
// returns the error (wrapped) without driving the executor. Task failures do
// not cause Run to fail.
//
// Run fails with executor.ErrAlreadyEntered if the calling goroutine is
// already running a Runtime (or otherwise holds the executor permit).
func (x *Runtime) Run(setup func(en *executor.Entered) error) error {
	return x.RunContext(context.Background(), setup)
}

// RunContext is Run, but stops driving the executor once ctx is done,
// returning ctx.Err() and leaving outstanding tasks queued.
func (x *Runtime) RunContext(ctx context.Context, setup func(en *executor.Entered) error) error {
	enter, err := executor.Acquire()
	if err != nil {
		return fmt.Errorf("rt: run: %w", err)
	}
	defer enter.Exit()

	if err := x.startRun(); err != nil {
		return err
	}
	defer x.endRun()

	x.logger.Debug().Str(`runtime`, x.id).Log(`rt: run started`)

	err = reactor.WithDefault(x.reactor.Handle(), enter, func(enter *executor.Enter) error {
		return clock.WithDefault(x.clock, enter, func(enter *executor.Enter) error {
			return timer.WithDefault(x.timer.Handle(), enter, func(enter *executor.Enter) error {
				return executor.WithDefault(executor.CurrentTaskExecutor(), enter, func(enter *executor.Enter) error {
					return x.drive(ctx, enter, setup)
				})
			})
		})
	})

	st := x.executor.Stats()
	b := x.logger.Debug().
		Str(`runtime`, x.id).
		Uint64(`completed`, st.Completed).
		Uint64(`failed`, st.Failed).
		Int(`live`, st.Live)
	if err != nil {
		b = b.Err(err)
	}
	b.Log(`rt: run finished`)

	return err
}

func (x *Runtime) drive(ctx context.Context, enter *executor.Enter, setup func(en *executor.Entered) error) error {
	en, err := x.executor.Enter(enter)
	if err != nil {
		return fmt.Errorf("rt: run: %w", err)
	}
	defer en.Exit()

	if setup != nil {
		// tasks spawned by a failed (or panicking) setup never run
		mark := en.LastTaskID()
		ok := false
		defer func() {
			if !ok {
				en.CancelAfter(mark)
			}
		}()
		if err := setup(en); err != nil {
			return fmt.Errorf("rt: setup: %w", err)
		}
		ok = true
	}

	return en.RunContext(ctx)
}

// Spawn queues f from any goroutine, without entering the runtime. It is
// polled the next time the runtime is run.
func (x *Runtime) Spawn(f executor.Future) (*executor.JoinHandle, error) {
	if x.isClosed() {
		return nil, ErrClosed
	}
	return x.executor.Handle().Spawn(f)
}

// Close drops outstanding tasks, without polling them, then shuts down the
// timer and closes the reactor. Afterwards the runtime's handles report
// timer.ErrShutdown and reactor.ErrClosed. It fails with
// executor.ErrAlreadyRunning while the runtime is running, and is otherwise
// idempotent.
func (x *Runtime) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	if x.runs != 0 {
		return fmt.Errorf("rt: close: %w", executor.ErrAlreadyRunning)
	}

	if err := x.executor.Close(); err != nil {
		return fmt.Errorf("rt: close: %w", err)
	}
	x.closed = true
	x.timer.Shutdown()
	err := x.reactor.Close()

	st := x.executor.Stats()
	b := x.logger.Info().
		Str(`runtime`, x.id).
		Uint64(`spawned`, st.Spawned).
		Uint64(`canceled`, st.Canceled)
	if err != nil {
		b = b.Err(err)
	}
	b.Log(`rt: closed`)

	if err != nil {
		return fmt.Errorf("rt: close: %w", err)
	}
	return nil
}

// startRun registers a run, unless the runtime is closed. Close fails while
// any run is registered.
func (x *Runtime) startRun() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrClosed
	}
	x.runs++
	return nil
}

func (x *Runtime) endRun() {
	x.mu.Lock()
	x.runs--
	x.mu.Unlock()
}

func (x *Runtime) isClosed() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closed
}

// ID returns the runtime's unique, time ordered (UUIDv7) identifier, as
// included in its log events.
func (x *Runtime) ID() string {
	return x.id
}

// Clock returns the runtime's clock.
func (x *Runtime) Clock() clock.Clock {
	return x.clock
}

// ReactorHandle returns a handle to the runtime's reactor.
func (x *Runtime) ReactorHandle() *reactor.Handle {
	return x.reactor.Handle()
}

// TimerHandle returns a handle to the runtime's timer.
func (x *Runtime) TimerHandle() *timer.Handle {
	return x.timer.Handle()
}

// Stats returns a snapshot of the executor's counters.
func (x *Runtime) Stats() executor.Stats {
	return x.executor.Stats()
}
