// Package ambient implements goroutine-scoped stacks of "current" values.
//
// Each Stack holds, per goroutine, one frame per nested scope. The innermost
// frame is current. Frames are only ever pushed via With (or Push, paired with
// a deferred restore), which guarantees the previous value is restored on
// every exit path, including panics.
package ambient

import (
	"sync"

	"github.com/joeycumines/go-rt/internal/goid"
)

// Stack is a goroutine-scoped stack of values of type T. The zero value is
// ready to use.
type Stack[T any] struct {
	frames map[uint64][]T
	mu     sync.Mutex
}

// Push makes v current for the calling goroutine and returns the function
// that restores the previous value. The restore function is idempotent, and
// also discards any frames pushed above it that were not restored.
func (s *Stack[T]) Push(v T) (restore func()) {
	id := goid.ID()

	s.mu.Lock()
	if s.frames == nil {
		s.frames = make(map[uint64][]T)
	}
	stack := append(s.frames[id], v)
	s.frames[id] = stack
	depth := len(stack)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			stack := s.frames[id]
			if len(stack) < depth {
				return
			}
			var zero T
			for i := depth - 1; i < len(stack); i++ {
				stack[i] = zero
			}
			stack = stack[:depth-1]
			if len(stack) == 0 {
				delete(s.frames, id)
			} else {
				s.frames[id] = stack
			}
		})
	}
}

// With runs fn with v current for the calling goroutine.
func (s *Stack[T]) With(v T, fn func() error) error {
	restore := s.Push(v)
	defer restore()
	return fn()
}

// Current returns the innermost value for the calling goroutine.
func (s *Stack[T]) Current() (v T, ok bool) {
	id := goid.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if stack := s.frames[id]; len(stack) != 0 {
		return stack[len(stack)-1], true
	}
	return v, false
}

// Depth returns the number of frames for the calling goroutine.
func (s *Stack[T]) Depth() int {
	id := goid.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames[id])
}
