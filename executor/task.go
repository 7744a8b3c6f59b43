package executor

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/joeycumines/go-rt/internal/goid"
)

type (
	// JoinHandle observes (and may cancel) a spawned task. It is also a
	// Future, ready once the task reaches a terminal state, with the task's
	// error.
	JoinHandle struct {
		t *task
	}

	// Dropper may be implemented by a Future to release resources (e.g. timer
	// entries) when its task is canceled or dropped before finishing.
	Dropper interface {
		Drop()
	}

	task struct {
		sched           *scheduler
		future          Future
		waker           *Waker
		err             error
		done            chan struct{}
		waiters         []*Waker
		id              uint64
		state           TaskState
		notified        bool
		cancelRequested atomic.Bool
	}

	// scheduler is the state shared between a CurrentThread, its handles, and
	// the wakers of its tasks. All task state transitions happen under mu.
	scheduler struct {
		queue  *queue.Queue
		live   map[uint64]*task
		unpark Unpark
		opts   *executorOptions
		stats  counters
		nextID uint64
		// stale counts canceled tasks still in queue
		stale  int
		driver atomic.Uint64
		mu     sync.Mutex
		closed bool
	}
)

var _ Future = (*JoinHandle)(nil)

const categoryTaskFailure = `executor.task_failure`

func newScheduler(unpark Unpark, opts *executorOptions) *scheduler {
	return &scheduler{
		queue:  queue.New(),
		live:   make(map[uint64]*task),
		unpark: unpark,
		opts:   opts,
	}
}

func (s *scheduler) spawn(f Future) (*JoinHandle, error) {
	if f == nil {
		return nil, ErrNilFuture
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.nextID++
	t := &task{
		sched:  s,
		future: f,
		id:     s.nextID,
		state:  StateSpawned,
		done:   make(chan struct{}),
	}
	t.waker = NewWaker(t.wake)
	s.live[t.id] = t
	s.queue.Add(t)
	s.mu.Unlock()

	s.stats.spawned.Add(1)
	s.notify()

	return &JoinHandle{t: t}, nil
}

// notify unparks the driving goroutine, if there is one and it isn't the
// caller. The caller must have already queued the work.
func (s *scheduler) notify() {
	if d := s.driver.Load(); d != 0 && d != goid.ID() {
		s.unpark.Unpark()
	}
}

func (s *scheduler) counts() (live, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live), s.queue.Length() - s.stale
}

func (s *scheduler) lastID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// tick polls, in FIFO order, the tasks that were queued when it started.
// Tasks woken during the pass are queued behind them, for the next pass.
// Canceled entries are discarded, and don't count against the task budget.
func (s *scheduler) tick() (polled int) {
	s.mu.Lock()
	n := s.queue.Length()
	s.mu.Unlock()

	budget := s.opts.taskBudget
	s.stats.passes.Add(1)

	for i := 0; i < n; i++ {
		if budget > 0 && polled >= budget {
			break
		}
		s.mu.Lock()
		if s.queue.Length() == 0 {
			s.mu.Unlock()
			break
		}
		t := s.queue.Remove().(*task)
		if !t.state.queued() {
			// canceled while queued
			s.stale--
			s.mu.Unlock()
			continue
		}
		t.state = StateRunning
		t.notified = false
		s.mu.Unlock()

		s.run(t)
		polled++
	}

	return polled
}

func (s *scheduler) run(t *task) {
	s.stats.polls.Add(1)

	ready, err := t.poll()

	var (
		state   TaskState
		waiters []*Waker
	)

	s.mu.Lock()
	switch {
	case err != nil:
		state = StateFailed
		waiters = s.finishLocked(t, state, &TaskError{ID: t.id, Cause: err})
	case ready:
		state = StateCompleted
		waiters = s.finishLocked(t, state, nil)
	case t.cancelRequested.Load():
		state = StateCanceled
		waiters = s.finishLocked(t, state, ErrTaskCanceled)
	case t.notified:
		t.notified = false
		t.state = StateRunnable
		s.queue.Add(t)
	default:
		t.state = StateSuspended
	}
	s.mu.Unlock()

	if state.Terminal() {
		s.finished(t, state, waiters)
	}
}

// finishLocked moves t to a terminal state. It must be called with s.mu held,
// and t must not already be terminal. The caller must pass the returned
// waiters to finished, after unlocking.
func (s *scheduler) finishLocked(t *task, state TaskState, err error) []*Waker {
	if t.state.queued() {
		s.stale++
	}
	t.state = state
	t.err = err
	delete(s.live, t.id)
	waiters := t.waiters
	t.waiters = nil
	return waiters
}

func (s *scheduler) finished(t *task, state TaskState, waiters []*Waker) {
	future := t.future
	t.future = nil

	close(t.done)
	for _, w := range waiters {
		w.Wake()
	}

	switch state {
	case StateCompleted:
		s.stats.completed.Add(1)

	case StateFailed:
		s.stats.failed.Add(1)
		taskErr, _ := t.err.(*TaskError)
		s.reportFailure(taskErr)

	case StateCanceled:
		s.stats.canceled.Add(1)
		if d, ok := future.(Dropper); ok {
			d.Drop()
		}
	}
}

func (s *scheduler) reportFailure(err *TaskError) {
	if err == nil {
		return
	}
	if _, ok := s.opts.failureLimiter.Allow(categoryTaskFailure); ok {
		b := s.opts.logger.Err()
		if panicErr, ok := err.Cause.(*PanicError); ok {
			b = b.Str(`stack`, string(panicErr.Stack))
		}
		b.Uint64(`task`, err.ID).
			Err(err.Cause).
			Log(`executor: task failed`)
	}
	if s.opts.failureHandler != nil {
		s.opts.failureHandler(err)
	}
}

// close drops every task that isn't running. It returns false if already
// closed.
func (s *scheduler) close() bool {
	type dropped struct {
		t       *task
		waiters []*Waker
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	var drop []dropped
	for _, t := range s.live {
		if t.state == StateRunning {
			t.cancelRequested.Store(true)
			continue
		}
		drop = append(drop, dropped{t: t})
	}
	for i := range drop {
		drop[i].waiters = s.finishLocked(drop[i].t, StateCanceled, ErrTaskCanceled)
	}
	for s.queue.Length() != 0 {
		s.queue.Remove()
	}
	s.stale = 0
	s.mu.Unlock()

	for _, d := range drop {
		s.finished(d.t, StateCanceled, d.waiters)
	}
	return true
}

// cancelAfter cancels every live task with an ID greater than id. Running
// tasks are flagged, as per JoinHandle.Cancel.
func (s *scheduler) cancelAfter(id uint64) int {
	type dropped struct {
		t       *task
		waiters []*Waker
	}

	s.mu.Lock()
	var drop []dropped
	for _, t := range s.live {
		if t.id <= id {
			continue
		}
		t.cancelRequested.Store(true)
		if t.state == StateRunning {
			continue
		}
		drop = append(drop, dropped{t: t})
	}
	for i := range drop {
		drop[i].waiters = s.finishLocked(drop[i].t, StateCanceled, ErrTaskCanceled)
	}
	s.mu.Unlock()

	for _, d := range drop {
		s.finished(d.t, StateCanceled, d.waiters)
	}
	return len(drop)
}

func (t *task) poll() (ready bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ready, err = true, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t.future.Poll(&Context{waker: t.waker, task: t})
}

func (t *task) wake() {
	s := t.sched

	s.mu.Lock()
	var queued bool
	switch t.state {
	case StateSuspended:
		t.state = StateRunnable
		s.queue.Add(t)
		queued = true
	case StateRunning:
		t.notified = true
	}
	s.mu.Unlock()

	if queued {
		s.notify()
	}
}

func (t *task) cancel() {
	t.cancelRequested.Store(true)

	s := t.sched
	s.mu.Lock()
	if t.state == StateRunning || t.state.Terminal() {
		s.mu.Unlock()
		return
	}
	waiters := s.finishLocked(t, StateCanceled, ErrTaskCanceled)
	s.mu.Unlock()

	s.finished(t, StateCanceled, waiters)
}

// ID returns the task's ID, unique within its executor.
func (h *JoinHandle) ID() uint64 {
	return h.t.id
}

// State returns the task's current state.
func (h *JoinHandle) State() TaskState {
	s := h.t.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	return h.t.state
}

// Err returns the task's outcome: nil unless it failed (a *TaskError) or was
// canceled (ErrTaskCanceled). It is nil while the task is not terminal.
func (h *JoinHandle) Err() error {
	s := h.t.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	return h.t.err
}

// Done returns a channel closed once the task is terminal.
func (h *JoinHandle) Done() <-chan struct{} {
	return h.t.done
}

// Cancel removes the task from future passes. A task that is being polled is
// not interrupted; it is removed when its current poll returns pending.
func (h *JoinHandle) Cancel() {
	h.t.cancel()
}

// Poll implements Future, allowing one task to await another.
func (h *JoinHandle) Poll(cx *Context) (bool, error) {
	s := h.t.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.t.state.Terminal() {
		return true, h.t.err
	}
	if w := cx.Waker(); w != nil {
		for _, existing := range h.t.waiters {
			if existing == w {
				return false, nil
			}
		}
		h.t.waiters = append(h.t.waiters, w)
	}
	return false, nil
}
