package executor

// TaskState is the lifecycle state of a task.
//
// State Machine:
//
//	StateSpawned → StateRunning             [first poll]
//	StateRunning → StateSuspended           [poll returned pending]
//	StateRunning → StateRunnable            [poll returned pending, woken during poll]
//	StateSuspended → StateRunnable          [Waker.Wake]
//	StateRunnable → StateRunning            [next pass]
//	StateRunning → StateCompleted           [poll returned ready, nil error]
//	StateRunning → StateFailed              [poll returned an error, or panicked]
//	non-terminal → StateCanceled            [JoinHandle.Cancel, CurrentThread.Close]
//
// A cancel requested while StateRunning takes effect when the poll returns
// pending.
type TaskState uint32

const (
	// StateSpawned indicates the task is queued but has never been polled.
	StateSpawned TaskState = iota
	// StateRunning indicates the task is being polled.
	StateRunning
	// StateSuspended indicates the task is waiting for a wake.
	StateSuspended
	// StateRunnable indicates the task was woken, and is queued.
	StateRunnable
	// StateCompleted is terminal: the task finished successfully.
	StateCompleted
	// StateFailed is terminal: the task returned an error or panicked.
	StateFailed
	// StateCanceled is terminal: the task was removed before finishing.
	StateCanceled
)

// String returns a human-readable representation of the state.
func (s TaskState) String() string {
	switch s {
	case StateSpawned:
		return "Spawned"
	case StateRunning:
		return "Running"
	case StateSuspended:
		return "Suspended"
	case StateRunnable:
		return "Runnable"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s >= StateCompleted
}

// queued reports whether a task in this state is (or should be) in the run
// queue.
func (s TaskState) queued() bool {
	return s == StateSpawned || s == StateRunnable
}
