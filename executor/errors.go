package executor

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrAlreadyEntered is returned by Enter if the calling goroutine already
	// holds the executor permit, i.e. another executor is running on it.
	ErrAlreadyEntered = errors.New("executor: an executor is already entered on this goroutine")

	// ErrNotEntered is returned when an operation requires a valid Enter
	// permit, owned by the calling goroutine, and none was provided.
	ErrNotEntered = errors.New("executor: not entered")

	// ErrAlreadyRunning is returned by CurrentThread.Enter if the executor is
	// already being driven.
	ErrAlreadyRunning = errors.New("executor: executor is already running")

	// ErrNoActiveExecutor indicates a spawn with no ambient executor.
	ErrNoActiveExecutor = errors.New("executor: no active executor")

	// ErrClosed is returned when spawning onto a closed executor.
	ErrClosed = errors.New("executor: executor closed")

	// ErrTaskCanceled is the outcome of a task that was canceled, or dropped
	// because its executor was closed.
	ErrTaskCanceled = errors.New("executor: task canceled")
)

// TaskError records the failure of a single task.
type TaskError struct {
	Cause error
	ID    uint64
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("executor: task %d failed: %v", e.ID, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered from a panicking poll.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("executor: task panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, otherwise nil.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ErrNilFuture is returned (or panicked, by Spawn variants without an error
// return) when spawning a nil Future.
var ErrNilFuture = errors.New("executor: nil future")
