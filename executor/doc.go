// Package executor provides a single-goroutine cooperative task scheduler.
//
// # Model
//
// A task is a [Future], polled by the [CurrentThread] scheduler on the
// goroutine that entered it. A poll either finishes the task, fails it, or
// leaves it suspended until its [Waker] is woken, by a timer expiry, by I/O
// readiness, or explicitly (possibly from another goroutine). When nothing is
// runnable the scheduler blocks in its [Park] until woken.
//
// Task states:
//
//	StateSpawned → StateRunning → StateSuspended → StateRunnable → StateRunning ...
//	StateRunning → StateCompleted | StateFailed
//	any non-terminal state → StateCanceled  [JoinHandle.Cancel, CurrentThread.Close]
//
// Within one pass tasks are polled in FIFO order; a task woken during pass N
// is polled no earlier than pass N+1, and at most once per pass.
//
// # Entering
//
// Only one executor may be entered per goroutine. [Acquire] takes that
// permit, and every ambient default (see [WithDefault], and the clock, reactor
// and timer packages) requires it as proof.
//
// # Ambient spawning
//
// [Spawn] and [TrySpawn] submit to the ambient default [Executor] of the
// calling goroutine. Spawning with no ambient executor is a logic error,
// reported as [ErrNoActiveExecutor].
package executor
