package fifu

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adharris/fifu-queue/pkg/timer"
)

// ============================================================================
// Test Helpers
// ============================================================================

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// stalledClock never runs scheduled callbacks, leaving Pop's age check as
// the only expiry path.
type stalledClock struct {
	*timer.Manual
}

type noopHandle struct{}

func (noopHandle) Stop() bool { return false }

func (stalledClock) AfterFunc(time.Duration, func()) timer.Handle { return noopHandle{} }

func newManualQueue[T any](t *testing.T, items []T, opts ...Option) (*Queue[T], *timer.Manual) {
	t.Helper()

	clock := timer.NewManual(epoch)
	q, err := New(items, append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(q.Close)

	return q, clock
}

// ledger returns the counters and the physical size read under one lock.
func ledger[T any](q *Queue[T]) (Stats, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats.snapshot(), q.items.len
}

func assertBalanced[T any](t *testing.T, q *Queue[T]) {
	t.Helper()
	s, size := ledger(q)
	assert.Equal(t, s.Added, s.Popped+s.Evicted+s.Skipped+uint64(size),
		"added must equal popped+evicted+skipped+size: %+v size=%d", s, size)
}

// ============================================================================
// Constructor Tests - New()
// ============================================================================

func TestNew_Defaults(t *testing.T) {
	q, err := New[int](nil)
	require.NoError(t, err)
	defer q.Close()

	assert.Equal(t, 0, q.Size())
	assert.True(t, q.Empty())
	assert.Equal(t, DefaultTTL, q.TTL())
}

func TestNew_TTL(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		wantErr bool
	}{
		{name: "positive ttl", ttl: time.Second},
		{name: "zero ttl is allowed", ttl: 0},
		{name: "negative ttl rejected", ttl: -time.Millisecond, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New[int](nil, WithTTL(tt.ttl), WithClock(timer.NewManual(epoch)))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidTTL))
				assert.Nil(t, q)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ttl, q.TTL())
		})
	}
}

func TestNew_InitialItems(t *testing.T) {
	q, _ := newManualQueue(t, []any{"a", "b", "c", 12})

	assert.Equal(t, 4, q.Size())
	assert.Equal(t, []any{"a", "b", "c", 12}, q.Drain())
}

func TestNew_NilOptionsKeepDefaults(t *testing.T) {
	q, err := New[int](nil, WithClock(nil), WithLogger(nil))
	require.NoError(t, err)
	defer q.Close()

	assert.NotNil(t, q.clock)
	assert.NotNil(t, q.logger)
}

// ============================================================================
// Add() / Pop() Tests
// ============================================================================

func TestPop_RemovesItem(t *testing.T) {
	q, _ := newManualQueue(t, []int{1, 2, 3})

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, []int{2, 3}, q.Drain())
}

func TestAdd_AppendsInOrder(t *testing.T) {
	q, _ := newManualQueue(t, []int{1, 2, 3})
	require.Equal(t, 3, q.Size())

	q.Add(11, 22, 33)

	assert.Equal(t, 6, q.Size())
	assert.Equal(t, []int{1, 2, 3, 11, 22, 33}, q.Drain())
}

func TestAdd_NoItems(t *testing.T) {
	q, clock := newManualQueue[int](t, nil)

	q.Add()

	assert.True(t, q.Empty())
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, uint64(0), q.Stats().Added)
}

func TestPop_Empty(t *testing.T) {
	q, _ := newManualQueue[int](t, nil)

	v, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, q.Size())
}

func TestPop_NilPayloadDistinctFromEmpty(t *testing.T) {
	q, _ := newManualQueue(t, []*int{nil})

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestPop_StopsScheduledEviction(t *testing.T) {
	q, clock := newManualQueue(t, []int{1, 2})
	require.Equal(t, 2, clock.Pending())

	_, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(2 * time.Hour)
	assert.True(t, q.Empty())
	assert.Equal(t, uint64(1), q.Stats().Evicted)
}

// ============================================================================
// Expiry Tests
// ============================================================================

func TestExpiry_DefaultTTLMixedAges(t *testing.T) {
	q, clock := newManualQueue[int](t, nil)

	q.Add(1)
	clock.Advance(5 * time.Minute)
	q.Add(2)
	clock.Advance(5 * time.Minute)
	q.Add(3)

	clock.Advance(45 * time.Minute)
	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// 65 minutes in: item 2 reached its hour, item 3 has not.
	clock.Advance(10 * time.Minute)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestExpiry_CustomTTL(t *testing.T) {
	q, clock := newManualQueue(t, []int{1}, WithTTL(1000*time.Millisecond))

	clock.Advance(500 * time.Millisecond)
	q.Add(2, 3)
	clock.Advance(500 * time.Millisecond)
	q.Add(4)

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	clock.Advance(1000 * time.Millisecond)
	assert.True(t, q.Empty())

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestExpiry_ScheduledEvictionShrinksSize(t *testing.T) {
	q, clock := newManualQueue(t, []string{"a", "b"}, WithTTL(time.Second))

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 2, q.Size())

	clock.Advance(time.Millisecond)
	assert.Equal(t, 0, q.Size())
	assert.Equal(t, uint64(2), q.Stats().Evicted)
}

func TestExpiry_RemovesByIdentity(t *testing.T) {
	q, clock := newManualQueue[int](t, nil, WithTTL(time.Minute))

	q.Add(7)
	clock.Advance(30 * time.Second)
	q.Add(7)
	clock.Advance(30 * time.Second)

	// Only the first 7 has expired.
	require.Equal(t, 1, q.Size())

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	clock.Advance(time.Minute)
	assert.Equal(t, uint64(1), q.Stats().Evicted)
	assert.Equal(t, uint64(1), q.Stats().Popped)
}

func TestExpiry_ZeroTTL(t *testing.T) {
	q, clock := newManualQueue(t, []int{1, 2}, WithTTL(0))
	require.Equal(t, 2, q.Size())

	clock.Advance(0)

	assert.True(t, q.Empty())
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestExpiry_LazySkipWhenEvictionLate(t *testing.T) {
	clock := stalledClock{timer.NewManual(epoch)}
	q, err := New[string](nil, WithClock(clock), WithTTL(time.Second))
	require.NoError(t, err)
	defer q.Close()

	var expired []string
	q.SetOnExpire(func(v string) { expired = append(expired, v) })

	q.Add("stale-1", "stale-2")
	clock.Advance(500 * time.Millisecond)
	q.Add("fresh")
	clock.Advance(501 * time.Millisecond)

	// Stale items are still physically present.
	assert.Equal(t, 3, q.Size())

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, []string{"stale-1", "stale-2"}, expired)
	assert.Equal(t, uint64(2), q.Stats().Skipped)
	assert.True(t, q.Empty())
	assertBalanced(t, q)
}

func TestExpiry_LazySkipCountedOnEmptyPop(t *testing.T) {
	clock := stalledClock{timer.NewManual(epoch)}
	q, err := New([]int{1, 2, 3}, WithClock(clock), WithTTL(time.Second))
	require.NoError(t, err)
	defer q.Close()

	clock.Advance(2 * time.Second)

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, Stats{Added: 3, Skipped: 3}, q.Stats())
	assertBalanced(t, q)
}

func TestExpiry_LazyBoundary(t *testing.T) {
	tests := []struct {
		name   string
		age    time.Duration
		wantOK bool
	}{
		{name: "younger than ttl", age: 999 * time.Millisecond, wantOK: true},
		{name: "exactly ttl", age: time.Second, wantOK: true},
		{name: "older than ttl", age: time.Second + time.Nanosecond, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := stalledClock{timer.NewManual(epoch)}
			q, err := New([]int{42}, WithClock(clock), WithTTL(time.Second))
			require.NoError(t, err)

			clock.Advance(tt.age)

			_, ok := q.Pop()
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, q.Empty())
		})
	}
}

func TestExpiry_OnExpireScheduled(t *testing.T) {
	q, clock := newManualQueue(t, []string{"x", "y"}, WithTTL(time.Second))

	var expired []string
	q.SetOnExpire(func(v string) { expired = append(expired, v) })

	_, _ = q.Pop()
	clock.Advance(time.Second)

	assert.Equal(t, []string{"y"}, expired)
}

func TestExpiry_RealClock(t *testing.T) {
	q, err := New([]string{"short-lived"}, WithTTL(20*time.Millisecond))
	require.NoError(t, err)
	defer q.Close()

	require.Eventually(t, q.Empty, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), q.Stats().Evicted)

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestExpiry_CachedTimer(t *testing.T) {
	ct := timer.NewCachedTimer(time.Millisecond)
	defer ct.Stop()

	q, err := New([]int{1}, WithClock(ct), WithTTL(time.Hour))
	require.NoError(t, err)

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	q.Close()
	before := ct.Now()
	require.Eventually(t, func() bool { return ct.Now().After(before) },
		time.Second, time.Millisecond, "Close must not stop a caller-owned clock")
}

// ============================================================================
// Close() Tests
// ============================================================================

func TestClose(t *testing.T) {
	q, clock := newManualQueue(t, []int{1, 2, 3})

	q.Close()

	assert.Equal(t, 0, clock.Pending())
	assert.True(t, q.Empty())

	q.Add(4)
	assert.True(t, q.Empty())

	_, ok := q.Pop()
	assert.False(t, ok)

	assert.NotPanics(t, q.Close)
}

func TestClose_SharedClock(t *testing.T) {
	ct := timer.NewCachedTimer(time.Millisecond)
	defer ct.Stop()

	a, err := New([]string{"a"}, WithClock(ct), WithTTL(50*time.Millisecond))
	require.NoError(t, err)
	b, err := New([]string{"b"}, WithClock(ct), WithTTL(50*time.Millisecond))
	require.NoError(t, err)
	defer b.Close()

	a.Close()

	// b keeps a running clock: its item ages out and is evicted.
	before := ct.Now()
	require.Eventually(t, func() bool { return ct.Now().After(before) },
		time.Second, time.Millisecond)
	require.Eventually(t, b.Empty, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), b.Stats().Evicted)

	b.Add("c")
	v, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestClose_OwnedClockStopped(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want bool
	}{
		{name: "default clock", want: true},
		{name: "nil clock keeps default", opts: []Option{WithClock(nil)}, want: true},
		{name: "injected clock", opts: []Option{WithClock(timer.NewManual(epoch))}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New[int](nil, tt.opts...)
			require.NoError(t, err)
			defer q.Close()

			assert.Equal(t, tt.want, q.ownsClock)
		})
	}
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestQueue_ConcurrentAccess(t *testing.T) {
	const (
		workers = 8
		rounds  = 2000
	)

	q, err := New[int](nil, WithTTL(time.Millisecond))
	require.NoError(t, err)
	defer q.Close()

	var expired atomic.Uint64
	q.SetOnExpire(func(int) { expired.Add(1) })

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				q.Add(w*rounds + i)
				if i%3 == 0 {
					_, _ = q.Pop()
				}
				_ = q.Size()
				_ = q.Stats()
			}
		}(w)
	}
	wg.Wait()

	// Evictions may still be firing; every one keeps the ledger balanced.
	assertBalanced(t, q)

	require.Eventually(t, q.Empty, 2*time.Second, 5*time.Millisecond)
	assertBalanced(t, q)

	s := q.Stats()
	assert.Equal(t, uint64(workers*rounds), s.Added)

	// OnExpire runs after the lock is released, so it may trail the counters.
	assert.Eventually(t, func() bool { return expired.Load() == s.Evicted+s.Skipped },
		time.Second, 5*time.Millisecond)
}

// ============================================================================
// Stats / Logging Tests
// ============================================================================

func TestStats(t *testing.T) {
	q, clock := newManualQueue(t, []int{1, 2, 3, 4}, WithTTL(time.Minute))

	_, _ = q.Pop()
	clock.Advance(time.Minute)

	assert.Equal(t, Stats{Added: 4, Popped: 1, Evicted: 3}, q.Stats())
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	q, clock := newManualQueue(t, []int{1}, WithTTL(time.Second), WithLogger(zap.New(core)))

	clock.Advance(time.Second)
	assert.Equal(t, 1, logs.FilterMessage("fifu: item evicted").Len())

	q.Close()
	q.Add(2)
	assert.Equal(t, 1, logs.FilterMessage("fifu: add on closed queue ignored").Len())
}
