package executor

import (
	"sync/atomic"
)

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Spawned   uint64
	Completed uint64
	Failed    uint64
	Canceled  uint64
	Polls     uint64
	Passes    uint64
	Parks     uint64
	// Live is the number of tasks not yet in a terminal state.
	Live int
	// Queued is the number of tasks waiting in the run queue.
	Queued int
}

type counters struct {
	spawned   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	canceled  atomic.Uint64
	polls     atomic.Uint64
	passes    atomic.Uint64
	parks     atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Spawned:   c.spawned.Load(),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
		Canceled:  c.canceled.Load(),
		Polls:     c.polls.Load(),
		Passes:    c.passes.Load(),
		Parks:     c.parks.Load(),
	}
}
