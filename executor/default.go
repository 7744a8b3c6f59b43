package executor

import (
	"fmt"

	"github.com/joeycumines/go-rt/internal/ambient"
)

type (
	// Executor accepts tasks.
	Executor interface {
		Spawn(f Future) (*JoinHandle, error)
	}

	// TaskExecutor spawns onto whichever CurrentThread is entered on the
	// calling goroutine, at the time of the spawn.
	TaskExecutor struct{}
)

var (
	// defaults is the ambient default executor, per goroutine.
	defaults ambient.Stack[Executor]

	// entered is the ambient entered executor, per goroutine.
	entered ambient.Stack[*Entered]
)

var _ Executor = TaskExecutor{}

// CurrentTaskExecutor returns a TaskExecutor, suitable as the ambient
// default executor for code running on an entered CurrentThread.
func CurrentTaskExecutor() TaskExecutor {
	return TaskExecutor{}
}

// Spawn implements Executor.
func (TaskExecutor) Spawn(f Future) (*JoinHandle, error) {
	en, ok := entered.Current()
	if !ok {
		return nil, ErrNoActiveExecutor
	}
	return en.executor.sched.spawn(f)
}

// WithDefault runs fn with ex as the ambient default executor of the calling
// goroutine, which must own enter. The previous default is restored when fn
// returns or panics.
func WithDefault(ex Executor, enter *Enter, fn func(enter *Enter) error) error {
	if err := enter.Check(); err != nil {
		return err
	}
	if ex == nil {
		return fmt.Errorf("executor: nil default executor")
	}
	return defaults.With(ex, func() error { return fn(enter) })
}

// DefaultExecutor returns the ambient default executor.
func DefaultExecutor() (Executor, error) {
	if ex, ok := defaults.Current(); ok {
		return ex, nil
	}
	return nil, ErrNoActiveExecutor
}

// TrySpawn submits f to the ambient default executor.
func TrySpawn(f Future) (*JoinHandle, error) {
	ex, err := DefaultExecutor()
	if err != nil {
		return nil, err
	}
	return ex.Spawn(f)
}

// Spawn submits f to the ambient default executor. Spawning with no ambient
// executor is a programming error: Spawn panics with an error wrapping
// ErrNoActiveExecutor, and no task is created. See also TrySpawn.
func Spawn(f Future) *JoinHandle {
	h, err := TrySpawn(f)
	if err != nil {
		panic(fmt.Errorf("executor: spawn: %w", err))
	}
	return h
}

// CurrentEntered returns the executor entered on the calling goroutine.
func CurrentEntered() (*Entered, bool) {
	return entered.Current()
}
