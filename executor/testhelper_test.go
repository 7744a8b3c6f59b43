package executor

import (
	"testing"

	"github.com/joeycumines/logiface"
)

// enter acquires the permit and enters ct, registering cleanup.
func enter(t *testing.T, ct *CurrentThread) *Entered {
	t.Helper()
	permit, err := Acquire()
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	t.Cleanup(permit.Exit)
	en, err := ct.Enter(permit)
	if err != nil {
		t.Fatalf("CurrentThread.Enter() failed: %v", err)
	}
	t.Cleanup(en.Exit)
	return en
}

func newExecutor(t *testing.T, opts ...Option) *CurrentThread {
	t.Helper()
	ct, err := New(opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return ct
}

// pending suspends on its first poll, storing its waker, and is ready on
// every subsequent poll.
type pending struct {
	waker *Waker
	polls int
}

func (p *pending) Poll(cx *Context) (bool, error) {
	p.polls++
	if p.polls == 1 {
		p.waker = cx.Waker()
		return false, nil
	}
	return true, nil
}

// never suspends forever.
type never struct{ dropped bool }

func (*never) Poll(*Context) (bool, error) { return false, nil }
func (n *never) Drop()                     { n.dropped = true }

// testEvent is a minimal logiface.Event implementation, recording messages.
type testEvent struct {
	logiface.UnimplementedEvent
	fields map[string]any
	msg    string
	level  logiface.Level
}

func (e *testEvent) Level() logiface.Level { return e.level }
func (e *testEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}
func (e *testEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func newTestLogger(out *[]*testEvent) *logiface.Logger[logiface.Event] {
	return logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *testEvent {
			return &testEvent{level: level}
		})),
		logiface.WithWriter[*testEvent](logiface.NewWriterFunc(func(e *testEvent) error {
			*out = append(*out, e)
			return nil
		})),
		logiface.WithLevel[*testEvent](logiface.LevelDebug),
	).Logger()
}
