// Package reactor implements the runtime's I/O readiness notifier.
//
// A Reactor multiplexes file descriptors with epoll (Linux only), in
// edge-triggered mode. Readiness reported by the kernel is accumulated on the
// fd's Registration until explicitly cleared, and wakes the tasks waiting on
// it. The Reactor implements executor.Park: parking the executor means
// blocking in epoll_wait, and unparking means writing to an eventfd that is
// part of the same epoll set.
package reactor

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-rt/executor"
	"github.com/joeycumines/go-rt/internal/ambient"
)

// IOEvents is a set of readiness kinds.
type IOEvents uint32

const (
	// EventRead indicates the fd is readable.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the fd is writable.
	EventWrite
	// EventError indicates an error condition on the fd.
	EventError
	// EventHangup indicates the peer closed its end.
	EventHangup
)

// Standard errors.
var (
	ErrClosed              = errors.New("reactor: closed")
	ErrUnsupportedPlatform = errors.New("reactor: unsupported platform")
	ErrFDAlreadyRegistered = errors.New("reactor: fd already registered")
	ErrDeregistered        = errors.New("reactor: registration deregistered")
	ErrNoReactor           = errors.New("reactor: no ambient reactor")
	ErrInvalidFD           = errors.New("reactor: invalid fd")
)

type (
	// Reactor is an epoll based readiness notifier. Turn must only be called
	// from one goroutine at a time, i.e. the goroutine driving the executor
	// that parks on it.
	Reactor struct {
		poller      poller
		regs        map[int]*Registration
		turns       atomic.Uint64
		dispatched  atomic.Uint64
		wakePending atomic.Uint32
		closeMu     sync.RWMutex // guards the fds against Unpark during Close
		mu          sync.Mutex
		closed      atomic.Bool
	}

	// Handle registers fds with a Reactor, from any goroutine.
	Handle struct {
		r *Reactor
	}

	// Registration tracks the readiness of one registered fd.
	Registration struct {
		r            *Reactor
		readWaker    *executor.Waker
		writeWaker   *executor.Waker
		fd           int
		interest     IOEvents
		ready        IOEvents
		deregistered bool
	}

	unparker struct {
		r *Reactor
	}
)

var (
	_ executor.Park   = (*Reactor)(nil)
	_ executor.Unpark = unparker{}

	defaults ambient.Stack[*Handle]
)

// New creates a Reactor. It fails with ErrUnsupportedPlatform off Linux, or
// with the underlying error if epoll or eventfd setup fails.
func New() (*Reactor, error) {
	r := &Reactor{regs: make(map[int]*Registration)}
	if err := r.poller.init(); err != nil {
		return nil, fmt.Errorf("reactor: init: %w", err)
	}
	return r, nil
}

// Handle returns a handle to r.
func (r *Reactor) Handle() *Handle {
	return &Handle{r: r}
}

// Turn waits for readiness for up to timeout (negative blocks until an event
// or Unpark), then dispatches it, waking the tasks waiting on the affected
// registrations. It returns the number of I/O events dispatched.
func (r *Reactor) Turn(timeout time.Duration) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	r.turns.Add(1)

	n, err := r.poller.wait(timeoutMillis(timeout))
	if err != nil {
		return 0, fmt.Errorf("reactor: wait: %w", err)
	}

	var (
		dispatched int
		wakers     []*executor.Waker
	)
	r.mu.Lock()
	for i := 0; i < n; i++ {
		fd, events, isWake := r.poller.event(i)
		if isWake {
			r.poller.drain()
			r.wakePending.Store(0)
			continue
		}
		reg := r.regs[fd]
		if reg == nil {
			continue
		}
		dispatched++
		wakers = reg.setReadyLocked(events, wakers)
	}
	r.mu.Unlock()

	for _, w := range wakers {
		w.Wake()
	}
	r.dispatched.Add(uint64(dispatched))

	return dispatched, nil
}

// Park implements executor.Park.
func (r *Reactor) Park() error {
	_, err := r.Turn(-1)
	return err
}

// ParkTimeout implements executor.Park.
func (r *Reactor) ParkTimeout(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	_, err := r.Turn(d)
	return err
}

// Unpark implements executor.Park.
func (r *Reactor) Unpark() executor.Unpark {
	return unparker{r: r}
}

// Unpark interrupts a blocked (or the next) Turn. Concurrent calls before the
// Turn observes the wakeup are coalesced into a single eventfd write.
func (u unparker) Unpark() {
	r := u.r
	if !r.wakePending.CompareAndSwap(0, 1) {
		return
	}
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed.Load() {
		return
	}
	if err := r.poller.wake(); err != nil {
		r.wakePending.Store(0)
	}
}

// Stats returns the number of turns taken and I/O events dispatched.
func (r *Reactor) Stats() (turns, dispatched uint64) {
	return r.turns.Load(), r.dispatched.Load()
}

// Closed reports whether Close has been called.
func (r *Reactor) Closed() bool {
	return r.closed.Load()
}

// Close releases the epoll instance and eventfd. Outstanding registrations
// are woken, and report ErrClosed. It is idempotent.
func (r *Reactor) Close() error {
	r.closeMu.Lock()
	if r.closed.Swap(true) {
		r.closeMu.Unlock()
		return nil
	}
	err := r.poller.close()
	r.closeMu.Unlock()

	var wakers []*executor.Waker
	r.mu.Lock()
	for fd, reg := range r.regs {
		wakers = reg.takeWakersLocked(wakers)
		delete(r.regs, fd)
	}
	r.mu.Unlock()
	for _, w := range wakers {
		w.Wake()
	}

	if err != nil {
		return fmt.Errorf("reactor: close: %w", err)
	}
	return nil
}

// Register adds fd to the reactor's interest set. The fd should be
// non-blocking, and must be deregistered before it is closed.
func (h *Handle) Register(fd int, interest IOEvents) (*Registration, error) {
	if fd < 0 {
		return nil, ErrInvalidFD
	}
	r := h.r

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if _, ok := r.regs[fd]; ok {
		return nil, ErrFDAlreadyRegistered
	}
	if err := r.poller.add(fd, interest); err != nil {
		return nil, fmt.Errorf("reactor: register fd %d: %w", fd, err)
	}
	reg := &Registration{r: r, fd: fd, interest: interest}
	r.regs[fd] = reg
	return reg, nil
}

// Reactor returns the handle's reactor.
func (h *Handle) Reactor() *Reactor {
	return h.r
}

// Closed reports whether the reactor has been closed.
func (h *Handle) Closed() bool {
	return h.r.closed.Load()
}

// FD returns the registered fd.
func (x *Registration) FD() int {
	return x.fd
}

// PollReady returns the accumulated readiness matching interest, where
// EventError and EventHangup always match. If there is none, it stores the
// waker from cx, for the direction(s) in interest, and returns zero.
func (x *Registration) PollReady(cx *executor.Context, interest IOEvents) (IOEvents, error) {
	r := x.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := x.errLocked(); err != nil {
		return 0, err
	}

	if ready := x.ready & (interest | EventError | EventHangup); ready != 0 {
		return ready, nil
	}

	w := cx.Waker()
	if interest&EventRead != 0 {
		x.readWaker = w
	}
	if interest&EventWrite != 0 {
		x.writeWaker = w
	}
	return 0, nil
}

// Interest returns the current interest set.
func (x *Registration) Interest() IOEvents {
	x.r.mu.Lock()
	defer x.r.mu.Unlock()
	return x.interest
}

// Readiness returns the accumulated readiness.
func (x *Registration) Readiness() IOEvents {
	x.r.mu.Lock()
	defer x.r.mu.Unlock()
	return x.ready
}

// ClearReady clears the given readiness, typically after an operation on the
// fd failed with EAGAIN. Being edge triggered, readiness is not reported
// again until the fd transitions back to ready.
func (x *Registration) ClearReady(events IOEvents) {
	x.r.mu.Lock()
	defer x.r.mu.Unlock()
	x.ready &^= events
}

// Modify changes the interest set.
func (x *Registration) Modify(interest IOEvents) error {
	r := x.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := x.errLocked(); err != nil {
		return err
	}
	if err := r.poller.modify(x.fd, interest); err != nil {
		return fmt.Errorf("reactor: modify fd %d: %w", x.fd, err)
	}
	x.interest = interest
	return nil
}

// Deregister removes the fd from the reactor, waking any waiting tasks, which
// will observe ErrDeregistered. It is idempotent.
func (x *Registration) Deregister() error {
	r := x.r

	r.mu.Lock()
	if x.deregistered || r.closed.Load() {
		x.deregistered = true
		r.mu.Unlock()
		return nil
	}
	x.deregistered = true
	delete(r.regs, x.fd)
	err := r.poller.remove(x.fd)
	wakers := x.takeWakersLocked(nil)
	r.mu.Unlock()

	for _, w := range wakers {
		w.Wake()
	}
	if err != nil {
		return fmt.Errorf("reactor: deregister fd %d: %w", x.fd, err)
	}
	return nil
}

func (x *Registration) errLocked() error {
	if x.r.closed.Load() {
		return ErrClosed
	}
	if x.deregistered {
		return ErrDeregistered
	}
	return nil
}

func (x *Registration) setReadyLocked(events IOEvents, wakers []*executor.Waker) []*executor.Waker {
	x.ready |= events
	if events&(EventRead|EventError|EventHangup) != 0 && x.readWaker != nil {
		wakers = append(wakers, x.readWaker)
		x.readWaker = nil
	}
	if events&(EventWrite|EventError|EventHangup) != 0 && x.writeWaker != nil {
		wakers = append(wakers, x.writeWaker)
		x.writeWaker = nil
	}
	return wakers
}

func (x *Registration) takeWakersLocked(wakers []*executor.Waker) []*executor.Waker {
	for _, w := range [...]*executor.Waker{x.readWaker, x.writeWaker} {
		if w != nil {
			wakers = append(wakers, w)
		}
	}
	x.readWaker, x.writeWaker = nil, nil
	return wakers
}

// String implements fmt.Stringer.
func (e IOEvents) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, v := range [...]struct {
		e    IOEvents
		name string
	}{
		{EventRead, "read"},
		{EventWrite, "write"},
		{EventError, "error"},
		{EventHangup, "hangup"},
	} {
		if e&v.e != 0 {
			parts = append(parts, v.name)
		}
	}
	return strings.Join(parts, "|")
}

// timeoutMillis rounds up to whole milliseconds, so that short timeouts still
// wait; negative means indefinitely.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// DefaultHandle returns the ambient reactor handle of the calling goroutine.
func DefaultHandle() (*Handle, error) {
	if h, ok := defaults.Current(); ok {
		return h, nil
	}
	return nil, ErrNoReactor
}

// WithDefault runs fn with h as the ambient reactor handle of the calling
// goroutine, which must own enter. The previous handle is restored when fn
// returns or panics.
func WithDefault(h *Handle, enter *executor.Enter, fn func(enter *executor.Enter) error) error {
	if err := enter.Check(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("reactor: nil default handle")
	}
	return defaults.With(h, func() error { return fn(enter) })
}
