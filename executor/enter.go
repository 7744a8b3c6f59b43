package executor

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-rt/internal/goid"
)

// Enter is the permit to drive an executor on the calling goroutine. At most
// one exists per goroutine at any time.
type Enter struct {
	owner  uint64
	exited atomic.Bool
}

var permits struct {
	byGoroutine map[uint64]*Enter
	sync.Mutex
}

// Acquire acquires the executor permit for the calling goroutine. It fails with
// ErrAlreadyEntered if the goroutine already holds one. The caller must call
// Exit, typically deferred, on every path.
func Acquire() (*Enter, error) {
	id := goid.ID()

	permits.Lock()
	defer permits.Unlock()

	if _, ok := permits.byGoroutine[id]; ok {
		return nil, ErrAlreadyEntered
	}
	if permits.byGoroutine == nil {
		permits.byGoroutine = make(map[uint64]*Enter)
	}
	e := &Enter{owner: id}
	permits.byGoroutine[id] = e
	return e, nil
}

// IsEntered reports whether the calling goroutine holds the permit.
func IsEntered() bool {
	id := goid.ID()
	permits.Lock()
	defer permits.Unlock()
	_, ok := permits.byGoroutine[id]
	return ok
}

// Exit releases the permit. It is idempotent.
func (e *Enter) Exit() {
	if e == nil || e.exited.Swap(true) {
		return
	}
	permits.Lock()
	defer permits.Unlock()
	if permits.byGoroutine[e.owner] == e {
		delete(permits.byGoroutine, e.owner)
	}
}

// Check returns ErrNotEntered unless e is a live permit owned by the calling
// goroutine.
func (e *Enter) Check() error {
	if e == nil || e.exited.Load() || e.owner != goid.ID() {
		return ErrNotEntered
	}
	return nil
}
