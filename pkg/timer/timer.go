package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a time provider.
type Timer interface {
	Now() time.Time
	Stop()
}

// Handle is a pending one-shot callback.
// Stop reports whether the call prevented the callback from running.
type Handle interface {
	Stop() bool
}

// Scheduler runs a callback once after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Handle
}

// Clock is a Timer that can also schedule callbacks.
type Clock interface {
	Timer
	Scheduler
}

var (
	_ Clock = (*CachedTimer)(nil)
	_ Clock = systemClock{}
)

// System returns a Clock backed by time.Now and time.AfterFunc.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
func (systemClock) Stop()          {}

func (systemClock) AfterFunc(d time.Duration, f func()) Handle {
	return time.AfterFunc(d, f)
}

// CachedTimer is a coarse clock refreshed every step by a background goroutine.
// Now is a single atomic load, callbacks go through time.AfterFunc.
type CachedTimer struct {
	now    atomic.Value
	step   time.Duration
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewCachedTimer starts a CachedTimer. A non-positive step defaults to one millisecond.
func NewCachedTimer(step time.Duration) *CachedTimer {
	if step <= 0 {
		step = time.Millisecond
	}

	t := &CachedTimer{
		step:   step,
		ticker: time.NewTicker(step),
		done:   make(chan struct{}),
	}
	t.now.Store(time.Now())

	t.wg.Add(1)
	go t.run()

	return t
}

func (t *CachedTimer) run() {
	defer t.wg.Done()

	for {
		select {
		case now := <-t.ticker.C:
			t.now.Store(now)
		case <-t.done:
			t.ticker.Stop()
			return
		}
	}
}

// Now returns the time observed at the last tick.
func (t *CachedTimer) Now() time.Time {
	return t.now.Load().(time.Time)
}

// Step returns the refresh interval.
func (t *CachedTimer) Step() time.Duration {
	return t.step
}

// AfterFunc schedules f on the runtime timer.
func (t *CachedTimer) AfterFunc(d time.Duration, f func()) Handle {
	return time.AfterFunc(d, f)
}

// Stop halts the refresh goroutine. Safe to call more than once.
func (t *CachedTimer) Stop() {
	t.once.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
}
