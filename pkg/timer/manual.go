package timer

import (
	"container/heap"
	"sync"
	"time"
)

var _ Clock = (*Manual)(nil)

// Manual is a virtual clock. Time only moves when Advance is called, and
// callbacks scheduled with AfterFunc run synchronously inside Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending eventHeap
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Stop is a no-op; pending callbacks stay scheduled.
func (m *Manual) Stop() {}

// AfterFunc schedules f to run once virtual time reaches now+d.
func (m *Manual) AfterFunc(d time.Duration, f func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := &event{
		clock: m,
		when:  m.now.Add(d),
		seq:   m.seq,
		fn:    f,
	}
	m.seq++
	heap.Push(&m.pending, ev)
	return ev
}

// Advance moves virtual time forward by d, firing every callback whose
// deadline falls at or before the new time. While a callback runs, Now
// reports that callback's deadline.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)

	for len(m.pending) > 0 && !m.pending[0].when.After(target) {
		ev := heap.Pop(&m.pending).(*event)
		if ev.when.After(m.now) {
			m.now = ev.when
		}

		m.mu.Unlock()
		ev.fn()
		m.mu.Lock()
	}

	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// Pending returns the number of callbacks that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type event struct {
	clock *Manual
	when  time.Time
	seq   uint64
	fn    func()
	index int // position in the heap, -1 once removed
}

func (e *event) Stop() bool {
	e.clock.mu.Lock()
	defer e.clock.mu.Unlock()

	if e.index < 0 {
		return false
	}
	heap.Remove(&e.clock.pending, e.index)
	return true
}

// eventHeap orders events by deadline, then by scheduling order.
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*event)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*h = old[:n-1]
	return ev
}
