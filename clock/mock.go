package clock

import (
	"sync"
	"time"
)

// Mock is a manually advanced Source, for tests. It is safe for concurrent
// use.
type Mock struct {
	now time.Time
	mu  sync.Mutex
}

var _ Source = (*Mock)(nil)

// NewMock returns a Mock starting at start.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

// Now implements Source.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock forward by d, returning the new time. Negative
// durations are ignored.
func (m *Mock) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now = m.now.Add(d)
	}
	return m.now
}

// Set moves the mock to t, which may be in the past.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
