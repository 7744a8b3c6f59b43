package timer

import (
	"time"

	"github.com/joeycumines/go-rt/executor"
)

// entry is a registered deadline. It is in the heap (index >= 0) until it
// fires, is canceled, or the timer shuts down.
type entry struct {
	deadline time.Time
	waker    *executor.Waker
	err      error
	seq      uint64
	index    int
	fired    bool
}

// entryHeap is a min-heap of entries, by deadline then registration order.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
