package application

import "sync"

// Queue is a multi-producer/multi-consumer FIFO with non-blocking and
// blocking takes, per spec.md §4.1. Pushes are totally ordered; pops are
// served in push order. The queue does not by itself signal termination
// — the Executor stops its workers by pushing one sentinel task per
// worker.
//
// Grounded on dshills-langgraph-go's Frontier: a mutex-guarded structure
// exposing an explicit non-blocking and blocking dequeue, generalized
// here from a priority heap to a plain slice-backed FIFO since spec.md's queue
// carries no ordering key.
type Queue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []T
}

// NewQueue creates an empty Queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends v to the tail of the queue and wakes one waiter, if any.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.cond.Signal()
}

// TryPop removes and returns the item at the head of the queue. It
// never blocks: ok is false if the queue was empty.
func (q *Queue[T]) TryPop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// WaitAndPop blocks until an item is available, then removes and
// returns it.
func (q *Queue[T]) WaitAndPop() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	v, _ := q.popLocked()
	return v
}

func (q *Queue[T]) popLocked() (v T, ok bool) {
	if len(q.items) == 0 {
		return v, false
	}
	v = q.items[0]
	q.items[0] = *new(T) // drop the reference so it can be GC'd
	q.items = q.items[1:]
	return v, true
}

// Len returns the current number of queued items. It is intended for
// metrics and tests; the value may be stale immediately under
// concurrent use.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
