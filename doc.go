// Package rt is a minimal, single-threaded asynchronous runtime.
//
// A Runtime binds four components: a Clock (time source), a Reactor (epoll
// based I/O readiness), a Timer (deadlines, layered over the Reactor), and a
// cooperative Executor (task scheduler, parked on the Timer). Runtime.Run
// installs all four as the ambient defaults of the calling goroutine, runs a
// setup function, then drives the executor until no tasks remain.
//
// # Ambient defaults
//
// Within Run, and within every task it polls, the following resolve to the
// runtime's components:
//
//   - [clock.Now] and [clock.Default]
//   - [reactor.DefaultHandle]
//   - [timer.DefaultHandle], [timer.Sleep], [timer.NewInterval], [timer.Timeout]
//   - [executor.DefaultExecutor], [executor.Spawn], [executor.TrySpawn]
//
// They are installed in that fixed order (reactor outermost, executor
// innermost), and restored when Run returns, whether it succeeds, fails or
// panics. Outside of any Run, [executor.Spawn] panics with an error wrapping
// [executor.ErrNoActiveExecutor].
//
// # Threading
//
// "Thread" means the goroutine that calls Run. At most one Runtime may be
// running per goroutine; a nested Run fails with
// [executor.ErrAlreadyEntered]. Wakers, and Runtime.Spawn, may be used from
// any goroutine.
//
// # Failures
//
// A task that returns an error, or panics, is marked failed and reported via
// its JoinHandle, the configured logger and failure handler. It does not
// affect other tasks, nor the result of Run.
package rt
