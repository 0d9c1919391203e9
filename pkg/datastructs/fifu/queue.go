// Package fifu implements a FIFO queue whose items silently expire after a
// fixed time-to-live.
//
// Each item gets its own scheduled eviction that removes it once the TTL has
// elapsed. Pop additionally checks the age of every head item and discards
// stale ones, so an expired item is never returned even when the scheduled
// eviction runs late.
package fifu

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/adharris/fifu-queue/pkg/datastructs/queue"
	"github.com/adharris/fifu-queue/pkg/timer"
)

var _ queue.Queue[int] = (*Queue[int])(nil)

// ErrInvalidTTL is returned by New when the TTL is negative.
var ErrInvalidTTL = errors.New("fifu: ttl must not be negative")

// Queue is a thread-safe FIFO queue that drops items older than its TTL.
type Queue[T any] struct {
	mu        sync.Mutex
	items     entryList[T]
	ttl       time.Duration
	clock     timer.Clock
	ownsClock bool
	logger    *zap.Logger
	onExpire  func(T)
	closed    bool
	stats     counters
}

// New creates a queue and adds items to it in order.
func New[T any](items []T, opts ...Option) (*Queue[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.ttl < 0 {
		return nil, errors.Wrapf(ErrInvalidTTL, "got %s", o.ttl)
	}

	q := &Queue[T]{
		ttl:       o.ttl,
		clock:     o.clock,
		ownsClock: o.ownsClock,
		logger:    o.logger,
	}
	q.Add(items...)

	return q, nil
}

// Add appends items to the tail of the queue, in the order given. Each item
// is stamped with the current time and scheduled for eviction after the TTL.
func (q *Queue[T]) Add(items ...T) {
	if len(items) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("fifu: add on closed queue ignored", zap.Int("items", len(items)))
		return
	}

	for _, item := range items {
		e := &entry[T]{
			value:      item,
			enqueuedAt: q.clock.Now(),
		}
		e.expiry = q.clock.AfterFunc(q.ttl, func() { q.evict(e) })
		q.items.pushBack(e)
	}
	q.stats.added.Add(uint64(len(items)))
}

// Pop removes and returns the oldest item that has not outlived the TTL.
// Expired items found on the way are discarded. It returns false when no
// such item exists.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return zero, false
	}

	now := q.clock.Now()
	var dropped []T

	for e := q.items.popFront(); e != nil; e = q.items.popFront() {
		e.expiry.Stop()

		if q.isExpired(e, now) {
			dropped = append(dropped, e.value)
			continue
		}

		q.stats.popped.Add(1)
		q.stats.skipped.Add(uint64(len(dropped)))
		onExpire := q.onExpire
		q.mu.Unlock()

		q.reportSkipped(dropped, onExpire)
		return e.value, true
	}

	q.stats.skipped.Add(uint64(len(dropped)))
	onExpire := q.onExpire
	q.mu.Unlock()

	q.reportSkipped(dropped, onExpire)
	return zero, false
}

// Drain pops every live item and returns them in FIFO order.
func (q *Queue[T]) Drain() []T {
	var out []T
	for {
		v, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// Size returns the number of items held, including expired items that have
// not been evicted yet.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.len
}

// Empty reports whether the queue holds no items.
func (q *Queue[T]) Empty() bool {
	return q.Size() == 0
}

// TTL returns the configured time-to-live.
func (q *Queue[T]) TTL() time.Duration {
	return q.ttl
}

// Stats returns a snapshot of the queue counters. Counters only change under
// the queue lock, so the snapshot is consistent across fields.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats.snapshot()
}

// SetOnExpire sets a callback for items dropped because they expired,
// whether by scheduled eviction or by Pop. It runs outside the queue lock.
func (q *Queue[T]) SetOnExpire(fn func(T)) {
	q.mu.Lock()
	q.onExpire = fn
	q.mu.Unlock()
}

// Close cancels all pending evictions and drops every item. The clock is
// stopped only when the queue created it; a clock passed with WithClock
// belongs to the caller. Later calls to Add are ignored and Pop reports an empty queue.
// Close is safe to call multiple times.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true

	for _, e := range q.items.reset() {
		e.expiry.Stop()
	}
	q.mu.Unlock()

	if q.ownsClock {
		q.clock.Stop()
	}
}

// evict removes e if it is still queued. It is the scheduled expiry callback.
func (q *Queue[T]) evict(e *entry[T]) {
	q.mu.Lock()
	if q.closed || !q.items.remove(e) {
		q.mu.Unlock()
		return
	}
	q.stats.evicted.Add(1)
	onExpire := q.onExpire
	q.mu.Unlock()

	q.logger.Debug("fifu: item evicted",
		zap.Time("enqueued_at", e.enqueuedAt),
		zap.Duration("ttl", q.ttl),
	)
	if onExpire != nil {
		onExpire(e.value)
	}
}

func (q *Queue[T]) isExpired(e *entry[T], now time.Time) bool {
	return now.Sub(e.enqueuedAt) > q.ttl
}

func (q *Queue[T]) reportSkipped(dropped []T, onExpire func(T)) {
	if len(dropped) == 0 {
		return
	}
	q.logger.Debug("fifu: expired items skipped on pop", zap.Int("count", len(dropped)))

	if onExpire == nil {
		return
	}
	for _, v := range dropped {
		onExpire(v)
	}
}
