package timer

import (
	"time"

	"github.com/joeycumines/go-rt/executor"
)

// Sleep is Handle.Sleep, on the ambient timer.
func Sleep(d time.Duration) (*Delay, error) {
	h, err := DefaultHandle()
	if err != nil {
		return nil, err
	}
	return h.Sleep(d), nil
}

// NewInterval is Handle.Interval, on the ambient timer.
func NewInterval(start time.Time, period time.Duration) (*Interval, error) {
	h, err := DefaultHandle()
	if err != nil {
		return nil, err
	}
	return h.Interval(start, period), nil
}

// Timeout is Handle.Timeout, on the ambient timer.
func Timeout(f executor.Future, d time.Duration) (executor.Future, error) {
	h, err := DefaultHandle()
	if err != nil {
		return nil, err
	}
	return h.Timeout(f, d), nil
}
