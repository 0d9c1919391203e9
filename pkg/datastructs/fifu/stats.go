package fifu

import "sync/atomic"

// Stats is a point-in-time copy of queue counters.
type Stats struct {
	Added   uint64 `json:"added"`
	Popped  uint64 `json:"popped"`
	Evicted uint64 `json:"evicted"` // removed by a scheduled expiry
	Skipped uint64 `json:"skipped"` // dropped by Pop's age check
}

type counters struct {
	added   atomic.Uint64
	popped  atomic.Uint64
	evicted atomic.Uint64
	skipped atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Added:   c.added.Load(),
		Popped:  c.popped.Load(),
		Evicted: c.evicted.Load(),
		Skipped: c.skipped.Load(),
	}
}
