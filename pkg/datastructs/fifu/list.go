package fifu

import (
	"time"

	"github.com/adharris/fifu-queue/pkg/timer"
)

// entry wraps a queued value with its enqueue time and pending expiry.
type entry[T any] struct {
	value      T
	enqueuedAt time.Time
	expiry     timer.Handle

	prev *entry[T]
	next *entry[T]
	list *entryList[T] // nil once unlinked
}

// entryList is a doubly linked list of entries. Membership is tracked on the
// entry so removal by identity is O(1) and safe to repeat.
// It is NOT thread-safe.
type entryList[T any] struct {
	head *entry[T]
	tail *entry[T]
	len  int
}

// pushBack appends e to the tail.
func (l *entryList[T]) pushBack(e *entry[T]) {
	e.list = l
	e.next = nil
	e.prev = l.tail

	if l.tail == nil {
		l.head = e
	} else {
		l.tail.next = e
	}
	l.tail = e
	l.len++
}

// popFront removes and returns the head entry, or nil when empty.
func (l *entryList[T]) popFront() *entry[T] {
	e := l.head
	if e == nil {
		return nil
	}
	l.unlink(e)
	return e
}

// remove unlinks e if it still belongs to l and reports whether it did.
func (l *entryList[T]) remove(e *entry[T]) bool {
	if e.list != l {
		return false
	}
	l.unlink(e)
	return true
}

func (l *entryList[T]) unlink(e *entry[T]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}

	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}

	e.prev = nil
	e.next = nil
	e.list = nil
	l.len--
}

// reset detaches every entry and returns them in order.
func (l *entryList[T]) reset() []*entry[T] {
	out := make([]*entry[T], 0, l.len)
	for e := l.popFront(); e != nil; e = l.popFront() {
		out = append(out, e)
	}
	return out
}
