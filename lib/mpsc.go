// Lock-free MPSC queue (Multiple Producers Single Consumer) used for the process mailboxes
// and the scheduler run queue.

package lib

import (
	"math"
	"sync/atomic"
)

// QueueMPSC is safe for concurrent Push. Pop and Item must be called by a single
// consumer at a time (the goroutine draining the mailbox, or a caller holding a lock).
type QueueMPSC[T any] interface {
	Push(value T) bool
	Pop() (T, bool)
	// Item returns the oldest item without removing it. Returns nil if the queue is empty.
	Item() ItemMPSC[T]
	// Len returns the number of items in the queue
	Len() int64
	// Size returns the limit for the queue. -1 - for unlimited
	Size() int64
}

type ItemMPSC[T any] interface {
	Next() ItemMPSC[T]
	Value() T
}

type queueMPSC[T any] struct {
	head   atomic.Pointer[itemMPSC[T]]
	tail   atomic.Pointer[itemMPSC[T]]
	length atomic.Int64
	limit  int64
}

type itemMPSC[T any] struct {
	value T
	next  atomic.Pointer[itemMPSC[T]]
}

// NewQueueMPSC creates an unlimited queue.
func NewQueueMPSC[T any]() QueueMPSC[T] {
	return NewQueueLimitMPSC[T](0)
}

// NewQueueLimitMPSC creates a queue holding at most limit items. Push returns false
// once the limit is reached. Zero or negative limit means unlimited.
func NewQueueLimitMPSC[T any](limit int64) QueueMPSC[T] {
	if limit < 1 {
		limit = math.MaxInt64
	}
	q := &queueMPSC[T]{
		limit: limit,
	}
	empty := &itemMPSC[T]{}
	q.head.Store(empty)
	q.tail.Store(empty)
	return q
}

func (q *queueMPSC[T]) Push(value T) bool {
	if q.length.Add(1) > q.limit {
		q.length.Add(-1)
		return false
	}
	i := &itemMPSC[T]{value: value}
	oldHead := q.head.Swap(i)
	oldHead.next.Store(i)
	return true
}

func (q *queueMPSC[T]) Pop() (T, bool) {
	var empty T

	tail := q.tail.Load()
	next := tail.next.Load()
	if next == nil {
		return empty, false
	}

	value := next.value
	next.value = empty // let the GC free the value
	q.tail.Store(next)
	q.length.Add(-1)
	return value, true
}

func (q *queueMPSC[T]) Item() ItemMPSC[T] {
	item := q.tail.Load().next.Load()
	if item == nil {
		return nil
	}
	return item
}

func (q *queueMPSC[T]) Len() int64 {
	return q.length.Load()
}

func (q *queueMPSC[T]) Size() int64 {
	if q.limit == math.MaxInt64 {
		return -1
	}
	return q.limit
}

// Next provides walking through the queue. Returns nil if the last item is reached.
func (i *itemMPSC[T]) Next() ItemMPSC[T] {
	next := i.next.Load()
	if next == nil {
		return nil
	}
	return next
}

func (i *itemMPSC[T]) Value() T {
	return i.value
}
