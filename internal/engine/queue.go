package engine

import (
	"sync"
)

// mutationQueue is a thread-safe FIFO queue feeding the Run loop.
//
// The queue is unbounded so a burst of gestures (multi-select drag,
// cascade of renormalizations) never blocks the enqueuing caller.
// A buffered signal channel of size 1 coalesces wakeups: the Run loop
// drains the queue after each signal, so one pending signal is enough.
type mutationQueue struct {
	mu     sync.Mutex
	items  []mutation
	closed bool
	signal chan struct{}
}

func newMutationQueue() *mutationQueue {
	return &mutationQueue{
		items:  make([]mutation, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a mutation to the back of the queue.
// Returns false if the queue is closed.
func (q *mutationQueue) Enqueue(m mutation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, m)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front mutation without blocking.
func (q *mutationQueue) TryDequeue() (mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return mutation{}, false
	}
	m := q.items[0]

	// Nil out the slot so the backing array does not retain the
	// mutation's pointers until reallocation.
	q.items[0] = mutation{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return m, true
}

// Wait returns the signal channel for context-aware waiting. The
// channel closes when the queue closes, waking all waiters.
func (q *mutationQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued mutations.
func (q *mutationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed. Further Enqueue calls return false.
func (q *mutationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
