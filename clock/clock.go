// Package clock provides the time source used by the runtime's timer.
//
// A Clock is a small value wrapping a Source. Code running inside a runtime
// reads time through the ambient default clock (see Now and WithDefault),
// which allows tests to substitute a Mock.
package clock

import (
	"time"

	"github.com/joeycumines/go-rt/executor"
	"github.com/joeycumines/go-rt/internal/ambient"
)

type (
	// Source supplies the current time.
	Source interface {
		Now() time.Time
	}

	// Clock reads time from a Source. The zero value uses the system clock.
	// Copies share the underlying Source.
	Clock struct {
		src Source
	}

	systemSource struct{}
)

var defaults ambient.Stack[Clock]

// New returns a Clock backed by the system clock.
func New() Clock {
	return Clock{src: systemSource{}}
}

// NewWithSource returns a Clock backed by src. A nil src is the system clock.
func NewWithSource(src Source) Clock {
	if src == nil {
		return New()
	}
	return Clock{src: src}
}

// Now returns the current time, per c's Source.
func (c Clock) Now() time.Time {
	if c.src == nil {
		return time.Now()
	}
	return c.src.Now()
}

// Source returns the Clock's Source.
func (c Clock) Source() Source {
	if c.src == nil {
		return systemSource{}
	}
	return c.src
}

func (systemSource) Now() time.Time { return time.Now() }

// Default returns the ambient clock of the calling goroutine, or the system
// clock if none is installed.
func Default() Clock {
	if c, ok := defaults.Current(); ok {
		return c
	}
	return New()
}

// Now returns the current time, per the ambient clock.
func Now() time.Time {
	return Default().Now()
}

// WithDefault runs fn with c as the ambient clock of the calling goroutine,
// which must own enter. The previous clock is restored when fn returns or
// panics.
func WithDefault(c Clock, enter *executor.Enter, fn func(enter *executor.Enter) error) error {
	if err := enter.Check(); err != nil {
		return err
	}
	return defaults.With(c, func() error { return fn(enter) })
}

// Installed reports whether an ambient clock is installed on the calling
// goroutine.
func Installed() bool {
	_, ok := defaults.Current()
	return ok
}
