// Package goid identifies the calling goroutine.
//
// Goroutine identity stands in for the "current thread" of the runtime: the
// goroutine that enters an executor is the only one that may drive it, and
// ambient defaults are scoped to it.
package goid

import (
	"github.com/joeycumines/goroutineid"
)

// ID returns the current goroutine's ID. It never returns 0 for a live
// goroutine, so 0 may be used as a "no owner" marker.
func ID() uint64 {
	return uint64(goroutineid.Get())
}
